package feed

import (
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/bilgisen/newswire/internal/models"
	"github.com/go-playground/validator/v10"
)

// ErrInvalidPayload is returned when a provider payload does not have the
// expected shape.
var ErrInvalidPayload = errors.New("invalid provider payload")

// Parser decodes, cleans and validates provider payloads
type Parser struct {
	validate     *validator.Validate
	htmlTagRegex *regexp.Regexp
	controlRegex *regexp.Regexp
}

func NewParser() *Parser {
	return &Parser{
		validate:     validator.New(),
		htmlTagRegex: regexp.MustCompile(`<[^>]*>`),
		controlRegex: regexp.MustCompile(`[\x00-\x1F\x7F]`),
	}
}

// CleanHTML removes HTML tags and control characters and normalizes whitespace
func (p *Parser) CleanHTML(input string) string {
	cleaned := p.htmlTagRegex.ReplaceAllString(input, " ")
	cleaned = html.UnescapeString(cleaned)
	cleaned = p.controlRegex.ReplaceAllString(cleaned, " ")
	return strings.Join(strings.Fields(cleaned), " ")
}

// Parse turns a raw payload into a validated batch. Any problem is reported
// as ErrInvalidPayload.
func (p *Parser) Parse(raw []byte) (*models.ArticleBatch, error) {
	var batch models.ArticleBatch
	if err := json.Unmarshal(raw, &batch); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	for i := range batch.Items {
		item := &batch.Items[i]
		for _, sub := range item.SubItems {
			if len(sub.SubItems) > 0 {
				return nil, fmt.Errorf("%w: sub-news of %s has its own sub-news", ErrInvalidPayload, item.SourceURL)
			}
		}

		p.normalize(item)
		for j := range item.SubItems {
			p.normalize(&item.SubItems[j])
		}
	}

	if err := p.validate.Struct(batch); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	return &batch, nil
}

func (p *Parser) normalize(item *models.ArticleItem) {
	item.Title = p.CleanHTML(item.Title)
	item.Snippet = p.CleanHTML(item.Snippet)
	item.Publisher = p.CleanHTML(item.Publisher)
	item.SourceURL = strings.TrimSpace(item.SourceURL)
}
