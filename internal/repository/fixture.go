package repository

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/rpattn/wellhistory/internal/domain"
)

// ReadFixture decodes a YAML fixture.
func ReadFixture(r io.Reader) (Fixture, error) {
	var fixture Fixture
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&fixture); err != nil {
		if err == io.EOF {
			return Fixture{}, nil
		}
		return Fixture{}, fmt.Errorf("failed to decode fixture: %w", err)
	}
	return fixture, nil
}

// ReadFixtureFile decodes the YAML fixture at path.
func ReadFixtureFile(path string) (Fixture, error) {
	file, err := os.Open(path)
	if err != nil {
		return Fixture{}, fmt.Errorf("failed to open fixture: %w", err)
	}
	defer file.Close()
	return ReadFixture(file)
}

// Snapshot converts the fixture revision into a domain snapshot.
func (r FixtureRevision) Snapshot(id uuid.UUID) domain.Snapshot {
	snapshot := domain.Snapshot{
		ID:         id,
		EntityID:   r.EntityID,
		Sequence:   r.Sequence,
		CreateUser: r.CreateUser,
		CreateDate: r.CreateDate,
		UpdateUser: r.UpdateUser,
		UpdateDate: r.UpdateDate,
		Fields:     r.Fields,
		Related:    r.Related,
	}
	if strings.TrimSpace(r.Serialized) != "" {
		snapshot.Serialized = json.RawMessage(r.Serialized)
	}
	return snapshot
}

// Snapshot converts the fixture submission into a domain snapshot.
func (s FixtureSubmission) Snapshot() domain.Snapshot {
	return domain.Snapshot{
		ID:             submissionID(s.FilingNumber),
		EntityID:       s.WellTagNumber,
		Sequence:       s.FilingNumber,
		CreateUser:     s.CreateUser,
		CreateDate:     s.CreateDate,
		Fields:         s.Fields,
		ActivityType:   s.ActivityType,
		FieldsProvided: s.FieldsProvided,
	}
}

// KeyString renders a stored key value the way parent keys are compared.
func KeyString(value any) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case string:
		return typed
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(typed), 'f', -1, 32)
	default:
		return fmt.Sprint(typed)
	}
}
