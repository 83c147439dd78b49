package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"storefront/internal/domain"
	"storefront/internal/money"
)

type ProductWriter interface {
	UpsertBySKU(ctx context.Context, product domain.Product) (*domain.Product, error)
}

type CategoryWriter interface {
	Upsert(ctx context.Context, c domain.Category) (*domain.Category, error)
	UpsertSubcategory(ctx context.Context, s domain.Subcategory) (*domain.Subcategory, error)
}

// CSVImporter reads catalog CSV exports and inserts/updates products by SKU.
//
// Columns: sku, name, description, price (decimal), stock, category,
// subcategory, image. A row with an empty sku continues the previous product
// and only contributes its image.
type CSVImporter struct {
	reader     *csv.Reader
	products   ProductWriter
	categories CategoryWriter
	logger     zerolog.Logger

	categoryIDs    map[string]string
	subcategoryIDs map[string]string
}

func NewCSVImporter(r io.Reader, products ProductWriter, categories CategoryWriter, logger *zerolog.Logger) *CSVImporter {
	csvr := csv.NewReader(r)
	csvr.FieldsPerRecord = -1 // rows may have trailing commas
	lg := zerolog.Nop()
	if logger != nil {
		lg = *logger
	}
	return &CSVImporter{
		reader:         csvr,
		products:       products,
		categories:     categories,
		logger:         lg,
		categoryIDs:    map[string]string{},
		subcategoryIDs: map[string]string{},
	}
}

type csvRow struct {
	line        int
	SKU         string
	Name        string
	Desc        string
	Price       string
	Stock       string
	Category    string
	Subcategory string
	ImageURLs   []string
}

// Run parses CSV rows and upserts products grouped by SKU.
func (i *CSVImporter) Run(ctx context.Context) (int, error) {
	headers, err := i.reader.Read()
	if err != nil {
		return 0, fmt.Errorf("read headers: %w", err)
	}
	index := headerIndex(headers)
	if _, ok := index["sku"]; !ok {
		return 0, errors.New("missing sku column")
	}

	var (
		current  *csvRow
		imported int
		line     = 1
	)

	for {
		record, err := i.reader.Read()
		line++
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return imported, fmt.Errorf("read row %d: %w", line, err)
		}

		row := parseRow(record, index)
		if row == nil {
			continue
		}
		row.line = line

		if row.SKU != "" {
			if current != nil {
				if err := i.save(ctx, current); err != nil {
					return imported, err
				}
				imported++
			}
			current = row
			continue
		}

		// Continuation rows (images) belong to the current product.
		if current != nil && len(row.ImageURLs) > 0 {
			current.ImageURLs = append(current.ImageURLs, row.ImageURLs...)
		}
	}

	if current != nil {
		if err := i.save(ctx, current); err != nil {
			return imported, err
		}
		imported++
	}

	i.logger.Info().Int("products", imported).Msg("catalog import finished")
	return imported, nil
}

func (i *CSVImporter) save(ctx context.Context, row *csvRow) error {
	if row.Name == "" || row.Price == "" {
		return fmt.Errorf("row %d: product %q is missing name or price", row.line, row.SKU)
	}
	cents, err := money.ParseCents(row.Price)
	if err != nil {
		return fmt.Errorf("row %d: %w", row.line, err)
	}
	stock := 0
	if row.Stock != "" {
		if stock, err = strconv.Atoi(row.Stock); err != nil || stock < 0 {
			return fmt.Errorf("row %d: invalid stock %q", row.line, row.Stock)
		}
	}

	p := domain.Product{
		SKU:         row.SKU,
		Name:        row.Name,
		Description: row.Desc,
		PriceCents:  cents,
		Stock:       stock,
		Images:      row.ImageURLs,
		Active:      true,
	}
	if row.Category != "" {
		catID, err := i.categoryID(ctx, row.Category)
		if err != nil {
			return fmt.Errorf("row %d: %w", row.line, err)
		}
		p.CategoryID = &catID
		if row.Subcategory != "" {
			subID, err := i.subcategoryID(ctx, catID, row.Category, row.Subcategory)
			if err != nil {
				return fmt.Errorf("row %d: %w", row.line, err)
			}
			p.SubcategoryID = &subID
		}
	}

	if _, err := i.products.UpsertBySKU(ctx, p); err != nil {
		return fmt.Errorf("upsert product %q: %w", row.SKU, err)
	}
	i.logger.Debug().Str("sku", row.SKU).Int("images", len(row.ImageURLs)).Msg("product imported")
	return nil
}

func (i *CSVImporter) categoryID(ctx context.Context, slug string) (string, error) {
	if id, ok := i.categoryIDs[slug]; ok {
		return id, nil
	}
	c, err := i.categories.Upsert(ctx, domain.Category{Slug: slug, Name: titleFromSlug(slug)})
	if err != nil {
		return "", fmt.Errorf("upsert category %q: %w", slug, err)
	}
	i.categoryIDs[slug] = c.ID
	return c.ID, nil
}

func (i *CSVImporter) subcategoryID(ctx context.Context, categoryID, categorySlug, slug string) (string, error) {
	key := categorySlug + "/" + slug
	if id, ok := i.subcategoryIDs[key]; ok {
		return id, nil
	}
	s, err := i.categories.UpsertSubcategory(ctx, domain.Subcategory{CategoryID: categoryID, Slug: slug, Name: titleFromSlug(slug)})
	if err != nil {
		return "", fmt.Errorf("upsert subcategory %q: %w", key, err)
	}
	i.subcategoryIDs[key] = s.ID
	return s.ID, nil
}

func titleFromSlug(slug string) string {
	words := strings.FieldsFunc(slug, func(r rune) bool { return r == '-' || r == '_' })
	for n, w := range words {
		words[n] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func headerIndex(headers []string) map[string]int {
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return idx
}

func parseRow(record []string, index map[string]int) *csvRow {
	sku := pick(record, index, "sku")
	imageURL := pick(record, index, "image")

	if sku == "" && imageURL == "" {
		return nil
	}

	row := &csvRow{
		SKU:         sku,
		Name:        pick(record, index, "name"),
		Desc:        pick(record, index, "description"),
		Price:       pick(record, index, "price"),
		Stock:       pick(record, index, "stock"),
		Category:    strings.ToLower(pick(record, index, "category")),
		Subcategory: strings.ToLower(pick(record, index, "subcategory")),
	}
	if imageURL != "" {
		row.ImageURLs = []string{imageURL}
	}
	return row
}

func pick(record []string, index map[string]int, key string) string {
	pos, ok := index[key]
	if !ok || pos >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[pos])
}
