package search

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/simple"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/single"
	"github.com/blevesearch/bleve/v2/mapping"
)

// slotAnalyzer indexes a location as one lowercased token, so "Rack1-A"
// matches "rack1-a" exactly.
const slotAnalyzer = "slot"

// buildIndexMapping creates the Bleve index mapping for wine documents.
//
// Producer and name carry most of the relevance. Ownership and cellar
// fields are keywords used only for filtering.
func buildIndexMapping() (mapping.IndexMapping, error) {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = simple.Name

	if err := indexMapping.AddCustomAnalyzer(slotAnalyzer, map[string]any{
		"type":          custom.Name,
		"tokenizer":     single.Name,
		"token_filters": []any{lowercase.Name},
	}); err != nil {
		return nil, err
	}

	docMapping := bleve.NewDocumentMapping()

	// --- Text fields ---

	nameFieldMapping := bleve.NewTextFieldMapping()
	nameFieldMapping.Analyzer = simple.Name
	nameFieldMapping.Store = true
	nameFieldMapping.IncludeTermVectors = true
	docMapping.AddFieldMappingsAt("name", nameFieldMapping)

	producerFieldMapping := bleve.NewTextFieldMapping()
	producerFieldMapping.Analyzer = simple.Name
	producerFieldMapping.Store = true
	producerFieldMapping.IncludeTermVectors = true
	docMapping.AddFieldMappingsAt("producer", producerFieldMapping)

	regionFieldMapping := bleve.NewTextFieldMapping()
	regionFieldMapping.Analyzer = simple.Name
	regionFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("region", regionFieldMapping)

	// Notes are free prose, so they get English stemming.
	notesFieldMapping := bleve.NewTextFieldMapping()
	notesFieldMapping.Analyzer = en.AnalyzerName
	notesFieldMapping.Store = false
	docMapping.AddFieldMappingsAt("notes", notesFieldMapping)

	locationFieldMapping := bleve.NewTextFieldMapping()
	locationFieldMapping.Analyzer = slotAnalyzer
	locationFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("location", locationFieldMapping)

	// --- Keyword fields ---

	for _, field := range []string{"user_id", "wine_id", "cellar_id", "color"} {
		fm := bleve.NewTextFieldMapping()
		fm.Analyzer = keyword.Name
		fm.Store = field != "user_id"
		docMapping.AddFieldMappingsAt(field, fm)
	}

	// --- Numeric fields ---

	yearFieldMapping := bleve.NewNumericFieldMapping()
	yearFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("year", yearFieldMapping)

	endYearFieldMapping := bleve.NewNumericFieldMapping()
	docMapping.AddFieldMappingsAt("end_year", endYearFieldMapping)

	addedAtFieldMapping := bleve.NewNumericFieldMapping()
	docMapping.AddFieldMappingsAt("added_at", addedAtFieldMapping)

	indexMapping.AddDocumentMapping("_default", docMapping)

	return indexMapping, nil
}
