package parsers

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ersonp/lore-graph/internal/domain/entities"
)

// listSeparator splits list columns such as known_ids.
const listSeparator = ";"

// CSVParser parses world files in CSV format: one entity per row, with a
// header naming the columns. Required columns are type and id; other columns
// are read when the row's entity type has that field. List columns hold
// semicolon separated IDs.
type CSVParser struct{}

// Parse reads CSV from the reader and returns the world file.
func (p *CSVParser) Parse(r io.Reader) (*WorldFile, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	colIndex, err := p.readHeader(reader)
	if err != nil {
		return nil, err
	}

	return p.readRecords(reader, colIndex)
}

// readHeader reads and validates the CSV header row.
func (p *CSVParser) readHeader(reader *csv.Reader) (map[string]int, error) {
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}

	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[strings.ToLower(strings.TrimSpace(col))] = i
	}

	requiredCols := []string{"type", "id"}
	for _, col := range requiredCols {
		if _, ok := colIndex[col]; !ok {
			return nil, fmt.Errorf("missing required column: %s", col)
		}
	}

	return colIndex, nil
}

// readRecords reads all data rows into a world file.
func (p *CSVParser) readRecords(reader *csv.Reader, colIndex map[string]int) (*WorldFile, error) {
	file := &WorldFile{}
	lineNum := 1 // Header is line 1

	for {
		lineNum++
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}

		if err := p.parseRecord(file, row{record: record, colIndex: colIndex}, lineNum); err != nil {
			return nil, err
		}
	}

	return file, nil
}

// parseRecord appends the entity described by one row.
func (p *CSVParser) parseRecord(file *WorldFile, r row, lineNum int) error {
	entityType, err := entities.ParseEntityType(r.get("type"))
	if err != nil {
		return fmt.Errorf("line %d: %w", lineNum, err)
	}
	id := r.get("id")
	if id == "" {
		return fmt.Errorf("line %d: missing id", lineNum)
	}
	worldID := r.get("world_id")

	switch entityType {
	case entities.EntityCharacter:
		file.Characters = append(file.Characters, entities.Character{
			ID:          entities.CharacterID(id),
			WorldID:     worldID,
			Name:        r.get("name"),
			Description: r.get("description"),
			Role:        r.get("role"),
			Backstory:   r.get("backstory"),
			LocationID:  entities.LocationID(r.get("location_id")),
			KnownIDs:    listColumn[entities.CharacterID](r.get("known_ids")),
		})
	case entities.EntityLocation:
		file.Locations = append(file.Locations, entities.Location{
			ID:           entities.LocationID(id),
			WorldID:      worldID,
			Name:         r.get("name"),
			Description:  r.get("description"),
			Significance: r.get("significance"),
			ParentID:     entities.LocationID(r.get("parent_id")),
		})
	case entities.EntityEvent:
		file.Events = append(file.Events, entities.Event{
			ID:             entities.EventID(id),
			WorldID:        worldID,
			Name:           r.get("name"),
			Description:    r.get("description"),
			Significance:   r.get("significance"),
			StoryTime:      r.get("story_time"),
			LocationID:     entities.LocationID(r.get("location_id")),
			ParticipantIDs: listColumn[entities.CharacterID](r.get("participant_ids")),
			CausedBy:       listColumn[entities.EventID](r.get("caused_by")),
		})
	case entities.EntityStory:
		file.Stories = append(file.Stories, entities.Story{
			ID:      entities.StoryID(id),
			WorldID: worldID,
			Title:   r.get("title"),
			Summary: r.get("summary"),
			Genre:   r.get("genre"),
		})
	case entities.EntityBeat:
		var sequence int
		if s := r.get("sequence"); s != "" {
			sequence, err = strconv.Atoi(s)
			if err != nil {
				return fmt.Errorf("line %d: invalid sequence value %q: %w", lineNum, s, err)
			}
		}
		file.Beats = append(file.Beats, entities.Beat{
			ID:           entities.BeatID(id),
			WorldID:      worldID,
			StoryID:      entities.StoryID(r.get("story_id")),
			Sequence:     sequence,
			Title:        r.get("title"),
			Content:      r.get("content"),
			LocationID:   entities.LocationID(r.get("location_id")),
			CharacterIDs: listColumn[entities.CharacterID](r.get("character_ids")),
			EventIDs:     listColumn[entities.EventID](r.get("event_ids")),
		})
	}
	return nil
}

// row is one CSV record with its header index.
type row struct {
	record   []string
	colIndex map[string]int
}

// get safely retrieves a trimmed column value.
func (r row) get(col string) string {
	if idx, ok := r.colIndex[col]; ok && idx < len(r.record) {
		return strings.TrimSpace(r.record[idx])
	}
	return ""
}

func listColumn[T ~string](value string) []T {
	if value == "" {
		return nil
	}
	var result []T
	for _, part := range strings.Split(value, listSeparator) {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, T(part))
		}
	}
	return result
}
