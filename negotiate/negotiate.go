// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package negotiate selects a response media type from an HTTP
// Accept: header, following RFC 7231 section 5.3.2.
//
// A request that does not send Accept: at all gets the first type the
// server offers.  Unlike a strict parser, segments of the header that
// cannot be understood are skipped rather than failing the request;
// many clients send slightly malformed headers and would rather get
// some response than a 400.
package negotiate

import (
	"mime"
	"sort"
	"strconv"
	"strings"

	"github.com/diffeo/go-restview/restdata"
)

// MediaRange is one element of a parsed Accept: header.
type MediaRange struct {
	// Type is the top-level type, "*" for a full wildcard.
	Type string

	// Subtype is the subtype, "*" for a wildcard.
	Subtype string

	// Params holds media type parameters other than "q".
	Params map[string]string

	// Quality is the "q" weight, between 0 and 1 inclusive.
	Quality float64
}

// Specificity ranks how precisely a range names a type: 0 for */*,
// 1 for type/*, 2 for type/subtype, 3 for type/subtype with
// parameters.
func (mr MediaRange) Specificity() int {
	switch {
	case mr.Type == "*":
		return 0
	case mr.Subtype == "*":
		return 1
	case len(mr.Params) > 0:
		return 3
	default:
		return 2
	}
}

// Matches reports whether mediaType falls within this range.
// mediaType may carry parameters; if the range has parameters, each
// must be present on mediaType with the same value.
func (mr MediaRange) Matches(mediaType string) bool {
	typ, params, err := mime.ParseMediaType(mediaType)
	if err != nil {
		return false
	}
	slash := strings.IndexByte(typ, '/')
	if slash < 0 {
		return false
	}
	major, minor := typ[:slash], typ[slash+1:]
	if mr.Type != "*" && mr.Type != major {
		return false
	}
	if mr.Subtype != "*" && mr.Subtype != minor {
		return false
	}
	for k, v := range mr.Params {
		if params[k] != v {
			return false
		}
	}
	return true
}

func (mr MediaRange) String() string {
	s := mr.Type + "/" + mr.Subtype
	if len(mr.Params) > 0 || mr.Quality != 1.0 {
		params := make(map[string]string, len(mr.Params)+1)
		for k, v := range mr.Params {
			params[k] = v
		}
		if mr.Quality != 1.0 {
			params["q"] = strconv.FormatFloat(mr.Quality, 'f', -1, 64)
		}
		s = mime.FormatMediaType(s, params)
	}
	return s
}

// ParseAccept parses an Accept: header into a list of media ranges,
// ordered by descending quality, then descending specificity, then
// position in the header.  Malformed ranges are dropped.
func ParseAccept(header string) []MediaRange {
	var ranges []MediaRange
	for _, segment := range strings.Split(header, ",") {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}
		if mr, ok := parseMediaRange(segment); ok {
			ranges = append(ranges, mr)
		}
	}
	sort.SliceStable(ranges, func(i, j int) bool {
		if ranges[i].Quality != ranges[j].Quality {
			return ranges[i].Quality > ranges[j].Quality
		}
		return ranges[i].Specificity() > ranges[j].Specificity()
	})
	return ranges
}

func parseMediaRange(segment string) (MediaRange, bool) {
	mediaType, params, err := mime.ParseMediaType(segment)
	if err != nil {
		return MediaRange{}, false
	}
	slash := strings.IndexByte(mediaType, '/')
	if slash <= 0 || slash == len(mediaType)-1 {
		return MediaRange{}, false
	}
	mr := MediaRange{
		Type:    mediaType[:slash],
		Subtype: mediaType[slash+1:],
		Quality: 1.0,
	}
	// "*/json" is not a thing
	if mr.Type == "*" && mr.Subtype != "*" {
		return MediaRange{}, false
	}
	if qStr, haveQ := params["q"]; haveQ {
		q, err := strconv.ParseFloat(qStr, 64)
		if err != nil || q < 0.0 || q > 1.0 {
			return MediaRange{}, false
		}
		mr.Quality = q
		delete(params, "q")
	}
	if len(params) > 0 {
		mr.Params = params
	}
	return mr, true
}

// Quality returns the weight a parsed Accept: header gives to
// mediaType: the quality of the most specific range that matches it,
// or 0 if none does.
func Quality(ranges []MediaRange, mediaType string) float64 {
	best := -1
	q := 0.0
	for _, mr := range ranges {
		if !mr.Matches(mediaType) {
			continue
		}
		if s := mr.Specificity(); s > best {
			best = s
			q = mr.Quality
		}
	}
	return q
}

// Select chooses the best of the available media types for an Accept:
// header.  Ties go to the type listed first in available.  If the
// header is empty, returns available[0].  Returns
// restdata.ErrNotAcceptable if no available type has a non-zero
// weight.
func Select(accept string, available []string) (string, error) {
	if len(available) == 0 {
		return "", restdata.ErrNotAcceptable{Accept: accept}
	}
	if strings.TrimSpace(accept) == "" {
		return available[0], nil
	}
	ranges := ParseAccept(accept)
	bestType := ""
	bestQ := 0.0
	for _, mediaType := range available {
		if q := Quality(ranges, mediaType); q > bestQ {
			bestType = mediaType
			bestQ = q
		}
	}
	if bestQ == 0.0 {
		return "", restdata.ErrNotAcceptable{Accept: accept}
	}
	return bestType, nil
}
