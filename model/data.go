package model

import (
	"strings"

	"github.com/contentforge/forge/codec"
	"github.com/contentforge/forge/constraint"
	"github.com/contentforge/forge/pkg/apierror"
)

// DataPair is one stored field value of one record. DType carries the
// stype text of the owning structure at the time of write.
type DataPair struct {
	ID                string
	StructureID       string
	CustomStructureID string
	Value             string
	DType             string
}

// UpdateValue escapes and validates a new value. The section sign and
// newline would collide with the pair and value delimiters.
func (p *DataPair) UpdateValue(value string) error {
	v := strings.ReplaceAll(value, "§", "_")
	v = strings.ReplaceAll(v, "\n", codec.NewlineSentinel)
	v, err := constraint.Validate("datapair", "value", v)
	if err != nil {
		return err
	}
	p.Value = v
	return nil
}

// Data is one record of a collection.
type Data struct {
	ID           string
	ProjectID    string
	CollectionID string
	Published    bool
	Pairs        []DataPair
}

// GetData finds a record by project, collection and id.
func GetData(list []Data, projectID, collectionID, id string) (*Data, error) {
	for i := range list {
		d := &list[i]
		if d.ProjectID == projectID && d.CollectionID == collectionID && strings.EqualFold(d.ID, id) {
			return d, nil
		}
	}
	return nil, apierror.NotFoundf("Error: data %s not found", id)
}

// DeleteData removes a record, keyed by data id alone within the list
// loaded for one (project, collection) pair. Cross-collection id
// collisions are undefined.
func DeleteData(list *[]Data, id string) error {
	for i := range *list {
		if strings.EqualFold((*list)[i].ID, id) {
			*list = append((*list)[:i], (*list)[i+1:]...)
			return nil
		}
	}
	return apierror.NotFoundf("Error: data %s not found", id)
}

// Pair finds a pair by its structure id.
func (d *Data) Pair(structureID string) (*DataPair, error) {
	for i := range d.Pairs {
		if d.Pairs[i].StructureID == structureID {
			return &d.Pairs[i], nil
		}
	}
	return nil, apierror.NotFoundf("Error: pair for structure %s not found", structureID)
}

// AddPair appends a field value.
func (d *Data) AddPair(p DataPair) {
	d.Pairs = append(d.Pairs, p)
}

// UpdatePair replaces the pair with the given pair id.
func (d *Data) UpdatePair(pairID string, p DataPair) error {
	for i := range d.Pairs {
		if d.Pairs[i].ID == pairID {
			d.Pairs[i] = p
			return nil
		}
	}
	return apierror.NotFoundf("Error: pair %s not found", pairID)
}

// RemovePair deletes the pair with the given pair id.
func (d *Data) RemovePair(pairID string) error {
	for i := range d.Pairs {
		if d.Pairs[i].ID == pairID {
			d.Pairs = append(d.Pairs[:i], d.Pairs[i+1:]...)
			return nil
		}
	}
	return apierror.NotFoundf("Error: pair %s not found", pairID)
}

// SetPairs bulk-replaces the record's pairs.
func (d *Data) SetPairs(pairs []DataPair) {
	d.Pairs = pairs
}

// Bulk rewriters, used on schema changes. Each is all-or-nothing per
// call: validation happens before any record is touched.

// BulkUpdateProjectID rewrites the project id on every record.
func BulkUpdateProjectID(list []Data, oldID, newID string) error {
	v, err := constraint.Validate("data", "project_id", newID)
	if err != nil {
		return err
	}
	for i := range list {
		if list[i].ProjectID == oldID {
			list[i].ProjectID = v
		}
	}
	return nil
}

// BulkUpdateCollectionID rewrites the collection id on every record.
func BulkUpdateCollectionID(list []Data, oldID, newID string) error {
	v, err := constraint.Validate("data", "collection_id", newID)
	if err != nil {
		return err
	}
	for i := range list {
		if list[i].CollectionID == oldID {
			list[i].CollectionID = v
		}
	}
	return nil
}

// BulkUpdateStructureID rewrites the structure id on every pair
// referencing it.
func BulkUpdateStructureID(list []Data, oldID, newID string) error {
	v, err := constraint.Validate("datapair", "structure_id", newID)
	if err != nil {
		return err
	}
	for i := range list {
		for j := range list[i].Pairs {
			if list[i].Pairs[j].StructureID == oldID {
				list[i].Pairs[j].StructureID = v
			}
		}
	}
	return nil
}

// BulkUpdateCustomStructureID rewrites the custom structure id on
// every pair referencing it.
func BulkUpdateCustomStructureID(list []Data, oldID, newID string) error {
	v, err := constraint.Validate("datapair", "custom_structure_id", newID)
	if err != nil {
		return err
	}
	for i := range list {
		for j := range list[i].Pairs {
			if list[i].Pairs[j].CustomStructureID == oldID {
				list[i].Pairs[j].CustomStructureID = v
			}
		}
	}
	return nil
}

// BulkUpdateValue rewrites the value of every pair referencing a
// structure.
func BulkUpdateValue(list []Data, structureID, value string) error {
	for i := range list {
		for j := range list[i].Pairs {
			if list[i].Pairs[j].StructureID == structureID {
				if err := list[i].Pairs[j].UpdateValue(value); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// BulkUpdateDType rewrites the stored stype text of every pair
// referencing a structure.
func BulkUpdateDType(list []Data, structureID, dtype string) error {
	v, err := constraint.Validate("datapair", "dtype", dtype)
	if err != nil {
		return err
	}
	for i := range list {
		for j := range list[i].Pairs {
			if list[i].Pairs[j].StructureID == structureID {
				list[i].Pairs[j].DType = v
			}
		}
	}
	return nil
}

// BulkRemoveStructure deletes every pair referencing a structure,
// used when the structure itself is deleted.
func BulkRemoveStructure(list []Data, structureID string) {
	for i := range list {
		kept := list[i].Pairs[:0]
		for _, p := range list[i].Pairs {
			if p.StructureID != structureID {
				kept = append(kept, p)
			}
		}
		list[i].Pairs = kept
	}
}

// String serialises one record:
// id;project_id;collection_id;published;PAIR§PAIR§…
// with pair = id=structure_id=custom_structure_id=dtype=value.
func (d Data) String() string {
	pairs := make([]string, 0, len(d.Pairs))
	for _, p := range d.Pairs {
		pairs = append(pairs, strings.Join([]string{
			p.ID, p.StructureID, p.CustomStructureID, p.DType, codec.EscapeValue(p.Value),
		}, "="))
	}
	published := "0"
	if d.Published {
		published = "1"
	}
	return strings.Join([]string{
		d.ID, d.ProjectID, d.CollectionID, published, strings.Join(pairs, "§"),
	}, ";")
}

// ParseData parses one serialised record.
func ParseData(raw string) (Data, error) {
	// Values may legitimately contain ';', so only the four header
	// fields are split off.
	fields := strings.SplitN(raw, ";", 5)
	if len(fields) != 5 {
		return Data{}, apierror.Internalf("data: malformed record %q", raw)
	}
	d := Data{
		ID:           fields[0],
		ProjectID:    fields[1],
		CollectionID: fields[2],
		Published:    fields[3] == "1",
	}
	if fields[4] != "" {
		for _, rawPair := range strings.Split(fields[4], "§") {
			parts := strings.SplitN(rawPair, "=", 5)
			if len(parts) != 5 {
				return Data{}, apierror.Internalf("data: malformed pair %q", rawPair)
			}
			d.Pairs = append(d.Pairs, DataPair{
				ID:                parts[0],
				StructureID:       parts[1],
				CustomStructureID: parts[2],
				DType:             parts[3],
				Value:             codec.UnescapeValue(parts[4]),
			})
		}
	}
	return d, nil
}

// DataToText serialises a record list with the block separator.
func DataToText(list []Data) string {
	blocks := make([]string, 0, len(list))
	for _, d := range list {
		blocks = append(blocks, d.String())
	}
	return strings.Join(blocks, "\n"+codec.RecordSeparator+"\n")
}

// ParseDataList parses a data file.
func ParseDataList(text string) ([]Data, error) {
	var out []Data
	for _, block := range strings.Split(text, codec.RecordSeparator) {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		d, err := ParseData(block)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}
