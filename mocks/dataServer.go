// SPDX-FileCopyrightText: 2024 Campus Rallye Admin contributors
//
// SPDX-License-Identifier: Apache-2.0

package mocks

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/gorilla/mux"

	"github.com/campusrallye/auth-bridge-go/datalayer"
)

// MockDataServer emulates the data layer's REST interface for the tables the
// bridge touches: row filters via user_id=eq.<value> and the primary key
// conflict on duplicate profile inserts.
type MockDataServer struct {
	Server *httptest.Server

	mutex         sync.Mutex
	profiles      map[string]datalayer.Profile
	registrations []datalayer.Registration

	// FailProfiles makes profile reads and writes answer 500, to exercise
	// data layer error handling.
	FailProfiles bool
	// LastAuthorization captures the Authorization header of the most
	// recent request, so tests can assert the minted credential is sent.
	LastAuthorization string
}

// NewMockDataServer instantiates a new MockDataServer with no rows.
func NewMockDataServer() *MockDataServer {
	m := &MockDataServer{
		profiles: make(map[string]datalayer.Profile),
	}

	r := mux.NewRouter()
	r.HandleFunc("/rest/v1/profiles", m.selectProfilesHandler).Methods(http.MethodGet)
	r.HandleFunc("/rest/v1/profiles", m.insertProfileHandler).Methods(http.MethodPost)
	r.HandleFunc("/rest/v1/registrations", m.insertRegistrationHandler).Methods(http.MethodPost)
	m.Server = httptest.NewServer(r)

	return m
}

// SeedProfile inserts a profile row directly, bypassing the HTTP surface.
func (m *MockDataServer) SeedProfile(p datalayer.Profile) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.profiles[p.UserID] = p
}

// ProfileCount returns the number of stored profile rows.
func (m *MockDataServer) ProfileCount() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return len(m.profiles)
}

// Registrations returns a copy of the stored registration rows.
func (m *MockDataServer) Registrations() []datalayer.Registration {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return append([]datalayer.Registration(nil), m.registrations...)
}

func (m *MockDataServer) selectProfilesHandler(w http.ResponseWriter, r *http.Request) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.LastAuthorization = r.Header.Get("Authorization")

	if m.FailProfiles {
		http.Error(w, "storage unavailable", http.StatusInternalServerError)
		return
	}

	rows := []datalayer.Profile{}
	if subject, ok := equalityFilter(r.URL.Query().Get("user_id")); ok {
		if row, found := m.profiles[subject]; found {
			rows = append(rows, row)
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rows)
}

func (m *MockDataServer) insertProfileHandler(w http.ResponseWriter, r *http.Request) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.LastAuthorization = r.Header.Get("Authorization")

	if m.FailProfiles {
		http.Error(w, "storage unavailable", http.StatusInternalServerError)
		return
	}

	var row datalayer.Profile
	if err := json.NewDecoder(r.Body).Decode(&row); err != nil || row.UserID == "" {
		http.Error(w, "invalid profile payload", http.StatusBadRequest)
		return
	}
	if _, exists := m.profiles[row.UserID]; exists {
		// PostgREST shape of a primary key violation
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"code":"23505","message":"duplicate key value violates unique constraint"}`))
		return
	}
	m.profiles[row.UserID] = row

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode([]datalayer.Profile{row})
}

func (m *MockDataServer) insertRegistrationHandler(w http.ResponseWriter, r *http.Request) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.LastAuthorization = r.Header.Get("Authorization")

	var row datalayer.Registration
	if err := json.NewDecoder(r.Body).Decode(&row); err != nil || row.UserID == "" {
		http.Error(w, "invalid registration payload", http.StatusBadRequest)
		return
	}
	m.registrations = append(m.registrations, row)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode([]datalayer.Registration{row})
}

func equalityFilter(raw string) (string, bool) {
	if value, ok := strings.CutPrefix(raw, "eq."); ok {
		return value, true
	}
	return "", false
}
