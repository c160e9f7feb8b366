// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mtp

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// archiveRecord is the CBOR layout of a Record: integer keys keep each
// archived position small.
type archiveRecord struct {
	Time        int64             `cbor:"0,keyasint"` // unix nanoseconds
	Status      uint8             `cbor:"1,keyasint"`
	StatusValid bool              `cbor:"2,keyasint"`
	Variables   []archiveVariable `cbor:"3,keyasint"`
}

type archiveVariable struct {
	Name   string  `cbor:"0,keyasint"`
	Raw    int64   `cbor:"1,keyasint"`
	Value  float64 `cbor:"2,keyasint"`
	Unit   string  `cbor:"3,keyasint"`
	Factor float64 `cbor:"4,keyasint"`
}

func toArchive(r Record) archiveRecord {
	a := archiveRecord{
		Time:        r.Time.UnixNano(),
		Status:      uint8(r.Status),
		StatusValid: r.StatusValid,
		Variables:   make([]archiveVariable, 0, len(r.Variables)),
	}
	for _, name := range r.Names() {
		v := r.Variables[name]
		a.Variables = append(a.Variables, archiveVariable{
			Name:   v.Name,
			Raw:    int64(v.Raw),
			Value:  v.Value,
			Unit:   v.Unit,
			Factor: v.Factor,
		})
	}
	return a
}

func fromArchive(a archiveRecord) Record {
	r := Record{
		Time:        time.Unix(0, a.Time),
		Status:      StatusWord(a.Status).Masked(),
		StatusValid: a.StatusValid,
		Variables:   make(map[string]Variable, len(a.Variables)),
	}
	for _, v := range a.Variables {
		r.Variables[v.Name] = Variable{
			Name:   v.Name,
			Raw:    int(v.Raw),
			Factor: v.Factor,
			Value:  v.Value,
			Unit:   v.Unit,
		}
	}
	return r
}

// EncodeRecord encodes a record to CBOR.
func EncodeRecord(r Record) ([]byte, error) {
	data, err := cbor.Marshal(toArchive(r))
	if err != nil {
		return nil, fmt.Errorf("failed to encode record: %w", err)
	}
	return data, nil
}

// DecodeRecord decodes a CBOR record produced by EncodeRecord.
func DecodeRecord(data []byte) (Record, error) {
	var a archiveRecord
	if err := cbor.Unmarshal(data, &a); err != nil {
		return Record{}, fmt.Errorf("failed to decode record: %w", err)
	}
	return fromArchive(a), nil
}

// ArchiveWriter appends CBOR records to a stream.
type ArchiveWriter struct {
	enc *cbor.Encoder
}

// NewArchiveWriter creates a writer over w.
func NewArchiveWriter(w io.Writer) *ArchiveWriter {
	return &ArchiveWriter{enc: cbor.NewEncoder(w)}
}

// Write appends one record.
func (a *ArchiveWriter) Write(r Record) error {
	if err := a.enc.Encode(toArchive(r)); err != nil {
		return fmt.Errorf("failed to archive record: %w", err)
	}
	return nil
}

// ReadArchive calls fn for every record in a CBOR archive stream.
func ReadArchive(r io.Reader, fn func(Record) error) error {
	dec := cbor.NewDecoder(r)
	for {
		var a archiveRecord
		if err := dec.Decode(&a); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("failed to read archive: %w", err)
		}
		if err := fn(fromArchive(a)); err != nil {
			return err
		}
	}
}
