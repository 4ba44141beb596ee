package roster

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// Logical import columns. Header matching is tolerant of casing and
// punctuation variance across exported spreadsheets.
const (
	ColDiscordName = "discord_name"
	ColIGN         = "ign"
	ColUID         = "uid"
	ColJoinDate    = "join_date"
)

var requiredColumns = []string{ColDiscordName, ColIGN, ColUID, ColJoinDate}

// headerAliases maps normalized header text to logical columns.
var headerAliases = map[string]string{
	"discordname":     ColDiscordName,
	"discord":         ColDiscordName,
	"discordusername": ColDiscordName,
	"name":            ColDiscordName,
	"ign":             ColIGN,
	"ingamename":      ColIGN,
	"gamename":        ColIGN,
	"uid":             ColUID,
	"userid":          ColUID,
	"id":              ColUID,
	"joindate":        ColJoinDate,
	"joined":          ColJoinDate,
	"datejoined":      ColJoinDate,
	"join":            ColJoinDate,
}

// normalizeHeader lowercases and strips everything but letters and digits,
// so "Join-Date ", "join_date" and "JoinDate" all land on the same alias.
func normalizeHeader(h string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(h) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ImportRow is one normalized roster row ready for insertion.
type ImportRow struct {
	DiscordName string
	IGN         string
	UID         string
	JoinDate    string
}

// MapHeaders resolves raw spreadsheet headers to logical columns. The whole
// import aborts with one error naming every missing required column.
func MapHeaders(headers []string) (map[string]int, error) {
	byColumn := make(map[string]int)
	for i, h := range headers {
		if col, ok := headerAliases[normalizeHeader(h)]; ok {
			if _, seen := byColumn[col]; !seen {
				byColumn[col] = i
			}
		}
	}

	var missing []string
	for _, col := range requiredColumns {
		if _, ok := byColumn[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("import: missing required columns: %s", strings.Join(missing, ", "))
	}
	return byColumn, nil
}

// NormalizeRows converts string-keyed records into ImportRows using the
// header alias table. Rows with an empty UID are skipped; blank cells in
// other columns are carried through as-is.
func NormalizeRows(records []map[string]string) ([]ImportRow, error) {
	if len(records) == 0 {
		return nil, nil
	}

	// Records carry their own string keys, so resolve each logical column
	// to the raw key it appears under.
	aliasFor := make(map[string]string, len(records[0]))
	for h := range records[0] {
		if col, ok := headerAliases[normalizeHeader(h)]; ok {
			if _, taken := aliasFor[col]; !taken {
				aliasFor[col] = h
			}
		}
	}
	var missing []string
	for _, col := range requiredColumns {
		if _, ok := aliasFor[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("import: missing required columns: %s", strings.Join(missing, ", "))
	}

	rows := make([]ImportRow, 0, len(records))
	for _, rec := range records {
		row := ImportRow{
			DiscordName: strings.TrimSpace(rec[aliasFor[ColDiscordName]]),
			IGN:         strings.TrimSpace(rec[aliasFor[ColIGN]]),
			UID:         strings.TrimSpace(rec[aliasFor[ColUID]]),
			JoinDate:    strings.TrimSpace(rec[aliasFor[ColJoinDate]]),
		}
		if row.UID == "" {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ParseCSV reads a raw CSV stream into ImportRows. The first record is the
// header row.
func ParseCSV(r io.Reader) ([]ImportRow, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("import: reading header: %w", err)
	}
	byColumn, err := MapHeaders(headers)
	if err != nil {
		return nil, err
	}

	var rows []ImportRow
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("import: reading row: %w", err)
		}
		cell := func(col string) string {
			i := byColumn[col]
			if i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}
		row := ImportRow{
			DiscordName: cell(ColDiscordName),
			IGN:         cell(ColIGN),
			UID:         cell(ColUID),
			JoinDate:    cell(ColJoinDate),
		}
		if row.UID == "" {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}
