package model

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	resellerNicknameMaxLength = 200
	resellerPhoneMaxLength    = 64
	resellerURLMaxLength      = 500
)

var (
	ErrInvalidResellerID       = errors.New("invalid_reseller_id")
	ErrInvalidResellerNickname = errors.New("invalid_reseller_nickname")
	ErrInvalidResellerPhone    = errors.New("invalid_reseller_phone")
	ErrInvalidResellerURL      = errors.New("invalid_reseller_url")
)

// Reseller is a contact record served by the lookup endpoint.
type Reseller struct {
	ID           uint64    `gorm:"primaryKey;autoIncrement:false"`
	Nickname     string    `gorm:"not null;size:200"`
	BillingPhone string    `gorm:"size:64"`
	URL          string    `gorm:"size:500"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

// ResellerInput holds the raw values used to construct a Reseller.
type ResellerInput struct {
	ID           string
	Nickname     string
	BillingPhone string
	URL          string
}

// ParseResellerID accepts decimal identifiers only.
func ParseResellerID(raw string) (uint64, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, ErrInvalidResellerID
	}
	for _, character := range trimmed {
		if character < '0' || character > '9' {
			return 0, fmt.Errorf("%w: %s", ErrInvalidResellerID, trimmed)
		}
	}
	identifier, parseErr := strconv.ParseUint(trimmed, 10, 64)
	if parseErr != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidResellerID, parseErr)
	}
	return identifier, nil
}

// NewReseller constructs a Reseller with validated, normalized fields.
func NewReseller(input ResellerInput) (Reseller, error) {
	identifier, idErr := ParseResellerID(input.ID)
	if idErr != nil {
		return Reseller{}, idErr
	}

	nickname := strings.TrimSpace(input.Nickname)
	if nickname == "" || len(nickname) > resellerNicknameMaxLength {
		return Reseller{}, fmt.Errorf("%w: empty or too long", ErrInvalidResellerNickname)
	}

	phone := strings.TrimSpace(input.BillingPhone)
	if len(phone) > resellerPhoneMaxLength {
		return Reseller{}, fmt.Errorf("%w: too long", ErrInvalidResellerPhone)
	}

	website := strings.TrimSpace(input.URL)
	if err := validateResellerURL(website); err != nil {
		return Reseller{}, err
	}

	return Reseller{
		ID:           identifier,
		Nickname:     nickname,
		BillingPhone: phone,
		URL:          website,
	}, nil
}

func validateResellerURL(website string) error {
	if website == "" {
		return nil
	}
	if len(website) > resellerURLMaxLength {
		return fmt.Errorf("%w: too long", ErrInvalidResellerURL)
	}
	parsed, parseErr := url.Parse(website)
	if parseErr != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResellerURL, parseErr)
	}
	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("%w: %s", ErrInvalidResellerURL, website)
	}
	return nil
}
