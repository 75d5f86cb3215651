// Package classify turns capture CSV files into classifier-ready feature
// rows and hosts classifier implementations. The real model runs out of
// process; anything satisfying ports.Classifier can be plugged in.
package classify

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/nvdai/suriwatch/internal/domain"
	"github.com/nvdai/suriwatch/internal/ports"
)

const srcIPColumn = "src_ip"

// WildcardIP is the unusable source the capture engine emits for flows it
// could not attribute.
const WildcardIP = "0.0.0.0"

// NewLoader returns a FlowLoader that parses capture CSVs into feature rows.
// Feature columns missing from the file are zero-filled; flows without a
// usable source address get the fallback so malicious verdicts still have an
// enforcement target. The fallback is read per load, so a hot-reloaded value
// takes effect on the next cycle.
func NewLoader(fallbackIP func() string) ports.FlowLoader {
	return func(path string) ([]domain.FlowRecord, error) {
		return loadFlows(path, fallbackIP())
	}
}

func loadFlows(path, fallbackIP string) ([]domain.FlowRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, err
	}

	index := make(map[string]int, len(header))
	for i, col := range header {
		index[col] = i
	}
	for _, col := range domain.FeatureColumns {
		if _, ok := index[col]; !ok {
			log.Warn().Str("column", col).Str("file", path).
				Msg("Capture missing feature column, filling with zero")
		}
	}
	srcIdx, hasSrc := index[srcIPColumn]

	var rows []domain.FlowRecord
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// One bad row never sinks the file.
			log.Debug().Err(err).Str("file", path).Msg("Skipping malformed capture row")
			continue
		}

		features := make([]float64, len(domain.FeatureColumns))
		for i, col := range domain.FeatureColumns {
			idx, ok := index[col]
			if !ok || idx >= len(record) {
				continue
			}
			if v, err := strconv.ParseFloat(record[idx], 64); err == nil {
				features[i] = v
			}
		}

		src := ""
		if hasSrc && srcIdx < len(record) {
			src = record[srcIdx]
		}
		if src == "" || src == WildcardIP {
			src = fallbackIP
		}

		rows = append(rows, domain.FlowRecord{SrcIP: src, Features: features})
	}
	return rows, nil
}
