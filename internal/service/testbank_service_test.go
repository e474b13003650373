package service

import (
	"context"
	"exam_tracker_backend/internal/config"
	"exam_tracker_backend/internal/util"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestBank(t *testing.T, handler http.HandlerFunc) *TestBankService {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewTestBankService(config.TestBankConfig{BaseURL: srv.URL, APIKey: "tb-key"}, srv.Client())
}

func TestTestBankQuestionsDecodesEnvelope(t *testing.T) {
	var gotQuery, gotAuth string
	svc := newTestBank(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"status":"ok","data":[
			{"id":12,"question":"Speed of light?","options":["c","2c"]},
			{"id":"q-13","question":"Unit of force?","options":["N","J","W"],"subject":"Physics"}
		]}`))
	})

	questions, err := svc.Questions(context.Background(), TestBankQuery{Subject: "Physics", Page: 2})
	if err != nil {
		t.Fatalf("Questions: %v", err)
	}
	if len(questions) != 2 || questions[0].ID != "12" || questions[1].ID != "q-13" {
		t.Fatalf("questions: %+v", questions)
	}
	if gotQuery != "page=2&subject=Physics" || gotAuth != "Bearer tb-key" {
		t.Fatalf("request: query=%q auth=%q", gotQuery, gotAuth)
	}
}

func TestTestBankRejectsUnexpectedShapes(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   util.ErrorKind
	}{
		{"one-option", 200, `{"status":"ok","data":[{"id":1,"question":"q","options":["a"]}]}`, util.KindUpstream},
		{"not-json", 200, `<html>`, util.KindUpstream},
		{"no-data", 200, `{"status":"ok"}`, util.KindUpstream},
		{"odd-status", 200, `{"status":"maybe","data":[]}`, util.KindUpstream},
		{"error-envelope", 200, `{"status":"error","error":{"code":"bad","message":"nope"}}`, util.KindUpstream},
		{"not-found-envelope", 200, `{"status":"error","error":{"code":"not_found","message":"gone"}}`, util.KindNotFound},
		{"http-404", 404, ``, util.KindNotFound},
		{"http-429", 429, ``, util.KindUpstreamRateLimit},
		{"http-403", 403, ``, util.KindUpstreamAuth},
		{"http-502", 502, ``, util.KindUpstream},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := newTestBank(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})
			_, err := svc.Questions(context.Background(), TestBankQuery{})
			if util.KindOf(err) != tc.want {
				t.Fatalf("want %s got=%v", tc.want, err)
			}
		})
	}
}

func TestTestBankSolution(t *testing.T) {
	var gotPath string
	svc := newTestBank(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{"status":"ok","data":{"questionId":42,"answer":"B","explanation":"Newton"}}`))
	})

	sol, err := svc.Solution(context.Background(), "42")
	if err != nil {
		t.Fatalf("Solution: %v", err)
	}
	if gotPath != "/solutions/42" || sol.QuestionID != "42" || sol.Answer != "B" {
		t.Fatalf("solution: path=%q %+v", gotPath, sol)
	}

	if _, err := svc.Solution(context.Background(), " "); util.KindOf(err) != util.KindValidation {
		t.Fatalf("blank id: %v", err)
	}
}

func TestTestBankNotConfigured(t *testing.T) {
	svc := NewTestBankService(config.TestBankConfig{}, nil)
	if _, err := svc.Questions(context.Background(), TestBankQuery{}); util.KindOf(err) != util.KindUpstream {
		t.Fatalf("want upstream error, got=%v", err)
	}
}
