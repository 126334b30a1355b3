// Package menu normalises and validates admin menu item payloads.
//
// Payloads arrive as loosely typed JSON: numbers may be sent as numeric
// strings and booleans as "true"/"false". Coercion happens here, at the
// boundary, and a value that cannot be coerced fails validation for its field.
package menu

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tableorder/api/internal/database"
)

const (
	MaxNameLength        = 80
	MaxDescriptionLength = 2000
	MaxPrepTimeMinutes   = 240
	categoryPlaceholder  = "ALL"
)

var MaxPrice = decimal.RequireFromString("9999999999.99")

const (
	MsgEmptyPatch       = "Không có dữ liệu để cập nhật."
	MsgInvalidPayload   = "Dữ liệu không hợp lệ."
	MsgCategoryRequired = "Vui lòng chọn danh mục."
	MsgCategoryInvalid  = "Danh mục không hợp lệ."
	MsgCategoryNotFound = "Danh mục không tồn tại."
	MsgNameRequired     = "Tên món không được để trống."
	MsgNameTooLong      = "Tên món tối đa 80 ký tự."
	MsgDescTooLong      = "Mô tả tối đa 2000 ký tự."
	MsgDescInvalid      = "Mô tả không hợp lệ."
	MsgStatusInvalid    = "Trạng thái không hợp lệ."
	MsgPriceRequired    = "Vui lòng nhập giá."
	MsgPriceInvalid     = "Giá không hợp lệ."
	MsgPricePositive    = "Giá phải lớn hơn 0."
	MsgPriceTooHigh     = "Giá vượt quá giới hạn cho phép."
	MsgPrepTimeInvalid  = "Thời gian chuẩn bị không hợp lệ."
	MsgPrepTimeRange    = "Thời gian chuẩn bị phải từ 0 đến 240 phút."
	MsgImageURLInvalid  = "Đường dẫn ảnh không hợp lệ."
	MsgChefRecInvalid   = "Giá trị món đề xuất không hợp lệ."

	MsgCategoryNameRequired = "Tên danh mục không được để trống."
	MsgCategoryNameTooLong  = "Tên danh mục tối đa 60 ký tự."
	MsgSortOrderInvalid     = "Thứ tự hiển thị không được âm."
)

const MaxCategoryNameLength = 60

// ValidationError is returned for every rejected payload. Field names the
// offending input key so clients can highlight it; it is empty for
// payload-level failures.
type ValidationError struct {
	Status  int    `json:"-"`
	Field   string `json:"field,omitempty"`
	Message string `json:"error"`
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, msg string) *ValidationError {
	return &ValidationError{Status: http.StatusBadRequest, Field: field, Message: msg}
}

// CategoryNotFound is returned when categoryId is well formed but names no
// active category.
func CategoryNotFound() *ValidationError {
	return invalid("categoryId", MsgCategoryNotFound)
}

// ValidateCategory trims and checks a new category.
func ValidateCategory(name string, sortOrder int32) (database.CreateCategoryParams, error) {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return database.CreateCategoryParams{}, invalid("name", MsgCategoryNameRequired)
	case utf8.RuneCountInString(name) > MaxCategoryNameLength:
		return database.CreateCategoryParams{}, invalid("name", MsgCategoryNameTooLong)
	case sortOrder < 0:
		return database.CreateCategoryParams{}, invalid("sort_order", MsgSortOrderInvalid)
	}
	return database.CreateCategoryParams{Name: name, SortOrder: sortOrder}, nil
}

// IsValidationError reports whether err carries a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Item is a fully validated create payload.
type Item struct {
	CategoryID        uuid.UUID
	Name              string
	Description       *string
	Status            database.MenuItemStatus
	Price             decimal.Decimal
	PrepTimeMinutes   int32
	ImageURL          *string
	IsChefRecommended bool
}

// Patch holds only the keys present in an update payload. For the nullable
// columns, the Set flag distinguishes "clear" from "leave unchanged".
type Patch struct {
	CategoryID        *uuid.UUID
	Name              *string
	SetDescription    bool
	Description       *string
	Status            *database.MenuItemStatus
	Price             *decimal.Decimal
	PrepTimeMinutes   *int32
	SetImageURL       bool
	ImageURL          *string
	IsChefRecommended *bool
}

func (p Patch) IsEmpty() bool {
	return p.CategoryID == nil && p.Name == nil && !p.SetDescription && p.Status == nil &&
		p.Price == nil && p.PrepTimeMinutes == nil && !p.SetImageURL && p.IsChefRecommended == nil
}

// Payload is a decoded JSON object keyed by field name.
type Payload map[string]json.RawMessage

// DecodePayload reads a single JSON object. Anything else is rejected.
func DecodePayload(r io.Reader) (Payload, error) {
	var p Payload
	if err := json.NewDecoder(r).Decode(&p); err != nil || p == nil {
		return nil, invalid("", MsgInvalidPayload)
	}
	return p, nil
}

// Field keys are accepted in camelCase and snake_case.
var fieldAliases = map[string][]string{
	"categoryId":        {"categoryId", "category_id"},
	"name":              {"name"},
	"description":       {"description"},
	"status":            {"status"},
	"price":             {"price"},
	"prepTimeMinutes":   {"prepTimeMinutes", "prep_time_minutes"},
	"imageUrl":          {"imageUrl", "image_url"},
	"isChefRecommended": {"isChefRecommended", "is_chef_recommended"},
}

func (p Payload) lookup(field string) (json.RawMessage, bool) {
	for _, key := range fieldAliases[field] {
		if v, ok := p[key]; ok {
			return v, true
		}
	}
	return nil, false
}

// ValidateCreate normalises every field, applies defaults, and returns the
// first violation found.
func ValidateCreate(p Payload) (Item, error) {
	var item Item

	raw, _ := p.lookup("categoryId")
	id, err := parseCategory(raw)
	if err != nil {
		return Item{}, err
	}
	item.CategoryID = id

	raw, _ = p.lookup("name")
	name, err := parseName(raw)
	if err != nil {
		return Item{}, err
	}
	item.Name = name

	if raw, ok := p.lookup("description"); ok {
		if item.Description, err = parseDescription(raw); err != nil {
			return Item{}, err
		}
	}

	item.Status = database.MenuItemStatusAvailable
	if raw, ok := p.lookup("status"); ok && !isNull(raw) {
		if item.Status, err = parseStatus(raw); err != nil {
			return Item{}, err
		}
	}

	raw, ok := p.lookup("price")
	if !ok || isNull(raw) {
		return Item{}, invalid("price", MsgPriceRequired)
	}
	if item.Price, err = parsePrice(raw); err != nil {
		return Item{}, err
	}

	if raw, ok := p.lookup("prepTimeMinutes"); ok && !isNull(raw) {
		if item.PrepTimeMinutes, err = parsePrepTime(raw); err != nil {
			return Item{}, err
		}
	}

	if raw, ok := p.lookup("imageUrl"); ok {
		s, err := parseOptionalText(raw, "imageUrl", MsgImageURLInvalid)
		if err != nil {
			return Item{}, err
		}
		if s != nil && !isAbsoluteHTTPURL(*s) {
			return Item{}, invalid("imageUrl", MsgImageURLInvalid)
		}
		item.ImageURL = s
	}

	if raw, ok := p.lookup("isChefRecommended"); ok && !isNull(raw) {
		b, ok := toBool(raw)
		if !ok {
			return Item{}, invalid("isChefRecommended", MsgChefRecInvalid)
		}
		item.IsChefRecommended = b
	}

	return item, nil
}

// ValidateUpdate normalises and validates only the keys present in p.
// imageUrl is stored as sent.
func ValidateUpdate(p Payload) (Patch, error) {
	var patch Patch

	if raw, ok := p.lookup("categoryId"); ok {
		id, err := parseCategory(raw)
		if err != nil {
			return Patch{}, err
		}
		patch.CategoryID = &id
	}

	if raw, ok := p.lookup("name"); ok {
		name, err := parseName(raw)
		if err != nil {
			return Patch{}, err
		}
		patch.Name = &name
	}

	if raw, ok := p.lookup("description"); ok {
		d, err := parseDescription(raw)
		if err != nil {
			return Patch{}, err
		}
		patch.SetDescription = true
		patch.Description = d
	}

	if raw, ok := p.lookup("status"); ok {
		s, err := parseStatus(raw)
		if err != nil {
			return Patch{}, err
		}
		patch.Status = &s
	}

	if raw, ok := p.lookup("price"); ok {
		price, err := parsePrice(raw)
		if err != nil {
			return Patch{}, err
		}
		patch.Price = &price
	}

	if raw, ok := p.lookup("prepTimeMinutes"); ok {
		m, err := parsePrepTime(raw)
		if err != nil {
			return Patch{}, err
		}
		patch.PrepTimeMinutes = &m
	}

	if raw, ok := p.lookup("imageUrl"); ok {
		s, err := parseOptionalText(raw, "imageUrl", MsgImageURLInvalid)
		if err != nil {
			return Patch{}, err
		}
		patch.SetImageURL = true
		patch.ImageURL = s
	}

	if raw, ok := p.lookup("isChefRecommended"); ok {
		b, ok := toBool(raw)
		if !ok {
			return Patch{}, invalid("isChefRecommended", MsgChefRecInvalid)
		}
		patch.IsChefRecommended = &b
	}

	if patch.IsEmpty() {
		return Patch{}, invalid("", MsgEmptyPatch)
	}
	return patch, nil
}

func parseCategory(raw json.RawMessage) (uuid.UUID, error) {
	s, ok := toText(raw)
	if !ok || s == "" || s == categoryPlaceholder {
		return uuid.Nil, invalid("categoryId", MsgCategoryRequired)
	}
	id, ok := parseUUIDv1to5(s)
	if !ok {
		return uuid.Nil, invalid("categoryId", MsgCategoryInvalid)
	}
	return id, nil
}

// parseUUIDv1to5 accepts only the canonical 36-character form with an
// RFC 4122 variant and a version between 1 and 5.
func parseUUIDv1to5(s string) (uuid.UUID, bool) {
	if len(s) != 36 {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, false
	}
	if v := id.Version(); v < 1 || v > 5 {
		return uuid.Nil, false
	}
	if id.Variant() != uuid.RFC4122 {
		return uuid.Nil, false
	}
	return id, true
}

func parseName(raw json.RawMessage) (string, error) {
	s, ok := toText(raw)
	if !ok || s == "" {
		return "", invalid("name", MsgNameRequired)
	}
	if utf8.RuneCountInString(s) > MaxNameLength {
		return "", invalid("name", MsgNameTooLong)
	}
	return s, nil
}

func parseDescription(raw json.RawMessage) (*string, error) {
	s, err := parseOptionalText(raw, "description", MsgDescInvalid)
	if err != nil {
		return nil, err
	}
	if s != nil && utf8.RuneCountInString(*s) > MaxDescriptionLength {
		return nil, invalid("description", MsgDescTooLong)
	}
	return s, nil
}

func parseStatus(raw json.RawMessage) (database.MenuItemStatus, error) {
	s, _ := toText(raw)
	switch st := database.MenuItemStatus(s); st {
	case database.MenuItemStatusAvailable, database.MenuItemStatusUnavailable, database.MenuItemStatusSoldOut:
		return st, nil
	}
	return "", invalid("status", MsgStatusInvalid)
}

// WithinMoneyScale reports whether d fits the two fractional digits of the
// money columns without rounding.
func WithinMoneyScale(d decimal.Decimal) bool {
	return d.Equal(d.Round(2))
}

func parsePrice(raw json.RawMessage) (decimal.Decimal, error) {
	price, ok := toNumber(raw)
	if !ok {
		return decimal.Zero, invalid("price", MsgPriceInvalid)
	}
	if !WithinMoneyScale(price) {
		return decimal.Zero, invalid("price", MsgPriceInvalid)
	}
	if !price.IsPositive() {
		return decimal.Zero, invalid("price", MsgPricePositive)
	}
	if price.GreaterThan(MaxPrice) {
		return decimal.Zero, invalid("price", MsgPriceTooHigh)
	}
	return price, nil
}

func parsePrepTime(raw json.RawMessage) (int32, error) {
	n, ok := toNumber(raw)
	if !ok || !n.IsInteger() {
		return 0, invalid("prepTimeMinutes", MsgPrepTimeInvalid)
	}
	if n.IsNegative() || n.GreaterThan(decimal.NewFromInt(MaxPrepTimeMinutes)) {
		return 0, invalid("prepTimeMinutes", MsgPrepTimeRange)
	}
	return int32(n.IntPart()), nil
}

// parseOptionalText trims a string; null and blank both normalise to nil.
func parseOptionalText(raw json.RawMessage, field, msg string) (*string, error) {
	if isNull(raw) {
		return nil, nil
	}
	s, ok := toText(raw)
	if !ok {
		return nil, invalid(field, msg)
	}
	if s == "" {
		return nil, nil
	}
	return &s, nil
}

func isAbsoluteHTTPURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

// toText accepts JSON strings and numbers, trimmed.
func toText(raw json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s), true
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), true
	}
	return "", false
}

// toNumber accepts JSON numbers and numeric strings. NaN and infinities do
// not parse as decimals and so are rejected.
func toNumber(raw json.RawMessage) (decimal.Decimal, bool) {
	s, ok := toText(raw)
	if !ok || s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// toBool accepts JSON booleans and the strings "true"/"false".
func toBool(raw json.RawMessage) (bool, bool) {
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "true":
			return true, true
		case "false":
			return false, true
		}
	}
	return false, false
}
