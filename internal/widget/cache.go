package widget

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/MarkoPoloResearchLab/reseller_cta/internal/jsontree"
)

const (
	// CookieName is the cookie holding the last good reseller record.
	CookieName = "trc_reseller_data"
	// CookieLifetime bounds how long a cached record is reused.
	CookieLifetime = 7 * 24 * time.Hour
	cookiePath     = "/"

	errorMessageEncodeCookie = "widget: encode cached record"
	errorMessageDecodeCookie = "widget: decode cached record"
	errorMessageCookieShape  = "widget: cached record is not an object"
)

var errCookieShape = errors.New(errorMessageCookieShape)

// CookieJar reads request cookies and queues response cookies for one page load.
type CookieJar interface {
	Cookie(name string) (string, bool)
	SetCookie(cookie *http.Cookie)
}

// EncodeRecord serializes a record as URL-encoded JSON.
func EncodeRecord(record Record) (string, error) {
	payload, marshalErr := json.Marshal(record)
	if marshalErr != nil {
		return "", fmt.Errorf("%s: %w", errorMessageEncodeCookie, marshalErr)
	}
	return url.QueryEscape(string(payload)), nil
}

// DecodeRecord reverses EncodeRecord. Scalar members are coerced to strings; nested
// members are dropped.
func DecodeRecord(value string) (Record, error) {
	unescaped, unescapeErr := url.QueryUnescape(value)
	if unescapeErr != nil {
		return nil, fmt.Errorf("%s: %w", errorMessageDecodeCookie, unescapeErr)
	}
	tree, parseErr := jsontree.Parse([]byte(unescaped))
	if parseErr != nil {
		return nil, fmt.Errorf("%s: %w", errorMessageDecodeCookie, parseErr)
	}
	members, isObject := tree.Raw().(map[string]any)
	if !isObject {
		return nil, errCookieShape
	}
	record := make(Record, len(members))
	for field, member := range members {
		text, isText := jsontree.From(member).Text()
		if !isText {
			continue
		}
		record[field] = text
	}
	return record, nil
}

// NewCookie builds the persisted cookie for a record.
func NewCookie(record Record, now time.Time) (*http.Cookie, error) {
	encoded, encodeErr := EncodeRecord(record)
	if encodeErr != nil {
		return nil, encodeErr
	}
	return &http.Cookie{
		Name:     CookieName,
		Value:    encoded,
		Path:     cookiePath,
		Expires:  now.Add(CookieLifetime).UTC(),
		MaxAge:   int(CookieLifetime / time.Second),
		SameSite: http.SameSiteLaxMode,
	}, nil
}

type cacheStatus int

const (
	cacheAbsent cacheStatus = iota
	cacheInvalid
	cacheValid
)

type recordCache struct {
	jar   CookieJar
	clock func() time.Time
}

// load reads the cookie and reports whether it holds at least one populated mapped field.
func (cache recordCache) load(mapping []FieldBinding) (Record, cacheStatus, error) {
	if cache.jar == nil {
		return nil, cacheAbsent, nil
	}
	value, found := cache.jar.Cookie(CookieName)
	if !found || value == "" {
		return nil, cacheAbsent, nil
	}
	record, decodeErr := DecodeRecord(value)
	if decodeErr != nil {
		return nil, cacheInvalid, decodeErr
	}
	for _, binding := range mapping {
		if record[binding.Field] != "" {
			return record, cacheValid, nil
		}
	}
	return nil, cacheInvalid, nil
}

func (cache recordCache) save(record Record) error {
	if cache.jar == nil {
		return nil
	}
	cookie, cookieErr := NewCookie(record, cache.clock())
	if cookieErr != nil {
		return cookieErr
	}
	cache.jar.SetCookie(cookie)
	return nil
}
