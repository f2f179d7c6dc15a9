/*
 * Copyright 2025 The Yorkie Authors. All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/yorkie-team/statesync/internal/validation"
)

// Record is a single client or booking entry. Its shape belongs to the
// front-end; the server forwards it verbatim.
type Record = json.RawMessage

// Signature identifies one exact version of the state document. Signatures
// are compared for equality only.
type Signature string

// String returns the string form of this signature.
func (s Signature) String() string {
	return string(s)
}

// StateDocument is the single shared document. A StateDocument is never
// mutated after it is created; replacing the state produces a new one.
type StateDocument struct {
	Clients  []Record  `json:"clients"`
	Bookings []Record  `json:"bookings"`
	Sig      Signature `json:"sig"`

	// seq is the in-process commit order assigned by the store. It is not
	// persisted.
	seq uint64
}

// NewStateDocument creates a new StateDocument with copies of the given
// records.
func NewStateDocument(clients, bookings []Record, sig Signature, seq uint64) *StateDocument {
	return &StateDocument{
		Clients:  copyRecords(clients),
		Bookings: copyRecords(bookings),
		Sig:      sig,
		seq:      seq,
	}
}

// Seq returns the commit order of this document within the running process.
func (d *StateDocument) Seq() uint64 {
	return d.seq
}

// String returns a short description of this document for logging.
func (d *StateDocument) String() string {
	return fmt.Sprintf("%s(clients=%d,bookings=%d)", d.Sig, len(d.Clients), len(d.Bookings))
}

func copyRecords(records []Record) []Record {
	copied := make([]Record, len(records))
	for i, r := range records {
		copied[i] = append(Record(nil), r...)
	}
	return copied
}

// SyncResponse is the result of a conditional read. When the caller already
// has the current version, Document is nil and only Sig is sent.
type SyncResponse struct {
	Document *StateDocument
	Sig      Signature
}

// Unchanged returns whether the caller's signature matched the current one.
func (r *SyncResponse) Unchanged() bool {
	return r.Document == nil
}

// MarshalJSON encodes either the full document or `{"sig": ...}`.
func (r *SyncResponse) MarshalJSON() ([]byte, error) {
	if r.Document != nil {
		return json.Marshal(r.Document)
	}

	return json.Marshal(struct {
		Sig Signature `json:"sig"`
	}{Sig: r.Sig})
}

// UnmarshalJSON decodes a response produced by MarshalJSON.
func (r *SyncResponse) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("unmarshal sync response: %w", err)
	}

	_, hasClients := fields["clients"]
	_, hasBookings := fields["bookings"]
	if !hasClients && !hasBookings {
		var reduced struct {
			Sig Signature `json:"sig"`
		}
		if err := json.Unmarshal(data, &reduced); err != nil {
			return fmt.Errorf("unmarshal sync response: %w", err)
		}
		r.Document = nil
		r.Sig = reduced.Sig
		return nil
	}

	doc := &StateDocument{}
	if err := json.Unmarshal(data, doc); err != nil {
		return fmt.Errorf("unmarshal sync response: %w", err)
	}
	r.Document = NewStateDocument(doc.Clients, doc.Bookings, doc.Sig, 0)
	r.Sig = doc.Sig
	return nil
}

// UpdateRequest is the body of a state replacement.
type UpdateRequest struct {
	Clients  json.RawMessage `json:"clients" validate:"jsonarray"`
	Bookings json.RawMessage `json:"bookings" validate:"jsonarray"`

	// PrevSig is the signature the writer last saw. It is advisory only: a
	// stale PrevSig does not reject the write.
	PrevSig Signature `json:"prevSig,omitempty"`
}

// Validate validates that both clients and bookings are JSON arrays. The
// contents of the records are not inspected.
func (r *UpdateRequest) Validate() error {
	return validation.ValidateStruct(r)
}

// Records decodes the clients and bookings of this request.
func (r *UpdateRequest) Records() ([]Record, []Record, error) {
	var clients, bookings []Record
	if err := json.Unmarshal(r.Clients, &clients); err != nil {
		return nil, nil, fmt.Errorf("decode clients: %w", err)
	}
	if err := json.Unmarshal(r.Bookings, &bookings); err != nil {
		return nil, nil, fmt.Errorf("decode bookings: %w", err)
	}
	return clients, bookings, nil
}

// NewUpdateRequest builds an UpdateRequest from decoded records.
func NewUpdateRequest(clients, bookings []Record, prevSig Signature) (*UpdateRequest, error) {
	rawClients, err := marshalRecords(clients)
	if err != nil {
		return nil, err
	}
	rawBookings, err := marshalRecords(bookings)
	if err != nil {
		return nil, err
	}

	return &UpdateRequest{
		Clients:  rawClients,
		Bookings: rawBookings,
		PrevSig:  prevSig,
	}, nil
}

func marshalRecords(records []Record) (json.RawMessage, error) {
	if records == nil {
		records = []Record{}
	}
	raw, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("marshal records: %w", err)
	}
	return bytes.TrimSpace(raw), nil
}

// UpdateResponse is the result of a state replacement.
type UpdateResponse struct {
	OK  bool      `json:"ok"`
	Sig Signature `json:"sig"`
}

// HealthInfo is the liveness report of the server.
type HealthInfo struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Environment string    `json:"environment"`
	DataDir     string    `json:"dataDir,omitempty"`
	Version     string    `json:"version"`
	Subscribers int       `json:"subscribers"`
}

// NewHealthInfo creates a healthy report stamped with the current time.
func NewHealthInfo(environment, dataDir, version string, subscribers int) *HealthInfo {
	return &HealthInfo{
		Status:      "ok",
		Timestamp:   time.Now().UTC(),
		Environment: environment,
		DataDir:     dataDir,
		Version:     version,
		Subscribers: subscribers,
	}
}

