// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package core

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/tidwall/gjson"

	"codeberg.org/phixiv/phixiv/core/requests"
)

// Fetcher performs a GET request to the pixiv ajax API and returns the
// unwrapped "body" of the response. *requests.Client implements it.
type Fetcher interface {
	GetJSONBody(ctx context.Context, url string) ([]byte, error)
}

// Tag is an artwork tag with its optional per-language translations.
type Tag struct {
	Tag         string            `json:"tag"         validate:"required"`
	Translation map[string]string `json:"translation"`
}

// Illust is the subset of pixiv's /ajax/illust/{id} response that listings are built from.
type Illust struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Tags        struct {
		Tags []Tag `json:"tags" validate:"dive"`
	} `json:"tags"`
	URLs struct {
		Regular  *string `json:"regular"`
		Original *string `json:"original"`
	} `json:"urls"`
	UserID    string `json:"userId"   validate:"required,numeric"`
	UserName  string `json:"userName"`
	ExtraData struct {
		Meta struct {
			Canonical string `json:"canonical" validate:"required,url"`
		} `json:"meta"`
	} `json:"extraData"`
	IllustType    IllustType `json:"illustType"    validate:"gte=0,lte=2"`
	CreateDate    string     `json:"createDate"    validate:"required"`
	PageCount     int        `json:"pageCount"     validate:"gte=1"`
	AIType        AIType     `json:"aiType"`
	XRestrict     XRestrict  `json:"xRestrict"`
	BookmarkCount int        `json:"bookmarkCount"`
	LikeCount     int        `json:"likeCount"`
	CommentCount  int        `json:"commentCount"`
	ViewCount     int        `json:"viewCount"`

	// ProfileImageURL is the first profile image found in userIllusts,
	// scanning the object in document order. Empty when there is none.
	ProfileImageURL string `json:"-"`
}

// requiredIllustPaths must be present in every response; a missing one
// means pixiv changed the response shape.
var requiredIllustPaths = []string{
	"title",
	"description",
	"tags.tags",
	"urls",
	"userId",
	"userName",
	"extraData.meta.canonical",
	"illustType",
	"createDate",
	"userIllusts",
	"pageCount",
	"aiType",
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// report json field names in errors
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}

		return name
	})

	return v
}

// FetchIllust requests one illustration from pixiv.
//
// Responses that lack a required field or carry an out-of-range value are
// rejected with a *requests.UpstreamError of kind KindSchema rather than
// being filled with defaults.
func FetchIllust(ctx context.Context, fetcher Fetcher, base, illustID, language string) (*Illust, error) {
	url := GetArtworkInformationURL(base, illustID, language)

	body, err := fetcher.GetJSONBody(ctx, url)
	if err != nil {
		return nil, err
	}

	illust, err := parseIllust(body)
	if err != nil {
		return nil, requests.NewSchemaError(url, err)
	}

	return illust, nil
}

func parseIllust(body []byte) (*Illust, error) {
	result := gjson.ParseBytes(body)

	for _, path := range requiredIllustPaths {
		if !result.Get(path).Exists() {
			return nil, fmt.Errorf("%w: missing %q", errUnexpectedShape, path)
		}
	}

	var illust Illust
	if err := json.Unmarshal(body, &illust); err != nil {
		return nil, fmt.Errorf("%w: %w", errUnexpectedShape, err)
	}

	if err := validate.Struct(&illust); err != nil {
		return nil, fmt.Errorf("%w: %w", errUnexpectedShape, err)
	}

	// userIllusts maps work ids to metadata or null; an empty map may be sent as [].
	result.Get("userIllusts").ForEach(func(_, work gjson.Result) bool {
		if profile := work.Get("profileImageUrl"); profile.Type == gjson.String {
			illust.ProfileImageURL = profile.String()

			return false
		}

		return true
	})

	return &illust, nil
}
