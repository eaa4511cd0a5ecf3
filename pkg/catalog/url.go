package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// ErrParse is returned when an identifier cannot be extracted from a resource URL.
var ErrParse = errors.New("parse identifier")

// IDFromURL extracts the trailing numeric id of a resource URL such as
// "https://pokeapi.co/api/v2/pokemon-species/25/".
func IDFromURL(raw string) (int, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrParse, err)
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	last := segments[len(segments)-1]
	id, err := strconv.Atoi(last)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: no numeric id in %q", ErrParse, raw)
	}
	return id, nil
}

// BatchFetcher resolves detail documents for many identifiers, preserving order.
type BatchFetcher interface {
	FetchAllDetails(ctx context.Context, resource string, ids []Identifier) ([]json.RawMessage, error)
}

// FetchItems resolves and decodes Pokemon detail documents.
func FetchItems(ctx context.Context, fetcher BatchFetcher, ids []Identifier) ([]Item, error) {
	docs, err := fetcher.FetchAllDetails(ctx, "pokemon", ids)
	if err != nil {
		return nil, err
	}
	return DecodeItems(docs)
}
