package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/btpmatch/internal/display"
	"github.com/hitoshi/btpmatch/internal/model"
	"github.com/hitoshi/btpmatch/internal/rating"
)

func TestRatingHandler_Open(t *testing.T) {
	svc := &mockRatingService{
		openFn: func(ctx context.Context, visitorID, providerID string) (rating.State, error) {
			if providerID != "p1" {
				t.Errorf("providerID = %q, want p1", providerID)
			}
			return rating.State{Open: true, TargetID: providerID, TargetName: "Dupont Plomberie"}, nil
		},
	}
	h := NewRatingHandler(svc, &mockTerminator{})

	req := withChiURLParam(httptest.NewRequest(http.MethodPost, "/providers/p1/rating", nil), "id", "p1")
	w := httptest.NewRecorder()
	h.Open(w, withVisitor(req))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var state rating.State
	json.NewDecoder(w.Body).Decode(&state)
	if !state.Open || state.TargetName != "Dupont Plomberie" {
		t.Errorf("unexpected state: %+v", state)
	}
}

func TestRatingHandler_Open_SelfRating(t *testing.T) {
	svc := &mockRatingService{
		openFn: func(ctx context.Context, visitorID, providerID string) (rating.State, error) {
			return rating.State{}, model.NewSelfRatingError()
		},
	}
	h := NewRatingHandler(svc, &mockTerminator{})

	req := withChiURLParam(httptest.NewRequest(http.MethodPost, "/providers/me/rating", nil), "id", "me")
	w := httptest.NewRecorder()
	h.Open(w, withVisitor(req))

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
}

func TestRatingHandler_UpdateCriteria_PassesScoresAndComment(t *testing.T) {
	svc := &mockRatingService{
		updateFn: func(ctx context.Context, visitorID string, scores map[string]int, comment *string) (rating.State, error) {
			if scores["Qualité du travail"] != 5 {
				t.Errorf("scores = %v", scores)
			}
			if comment == nil || *comment != "Très bon travail" {
				t.Errorf("comment = %v", comment)
			}
			return rating.State{Open: true, Scores: scores, Average: 5}, nil
		},
	}
	h := NewRatingHandler(svc, &mockTerminator{})

	body := `{"scores":{"Qualité du travail":5},"comment":"Très bon travail"}`
	req := withVisitor(httptest.NewRequest(http.MethodPut, "/rating/criteria", bytes.NewBufferString(body)))
	w := httptest.NewRecorder()
	h.UpdateCriteria(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestRatingHandler_UpdateCriteria_CommentOmitted(t *testing.T) {
	svc := &mockRatingService{
		updateFn: func(ctx context.Context, visitorID string, scores map[string]int, comment *string) (rating.State, error) {
			if comment != nil {
				t.Error("コメント省略時は nil を渡すこと")
			}
			return rating.State{Open: true}, nil
		},
	}
	h := NewRatingHandler(svc, &mockTerminator{})

	req := withVisitor(httptest.NewRequest(http.MethodPut, "/rating/criteria", bytes.NewBufferString(`{"scores":{"Ponctualité":3}}`)))
	w := httptest.NewRecorder()
	h.UpdateCriteria(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestRatingHandler_Submit(t *testing.T) {
	tests := []struct {
		name       string
		resp       *ratingSubmitResponse
		err        error
		wantStatus int
	}{
		{
			name:       "created",
			resp:       &ratingSubmitResponse{Review: &display.ReviewView{ID: "r1", Rating: 4.5}},
			wantStatus: http.StatusCreated,
		},
		{name: "incomplete", err: model.NewRatingIncompleteError([]string{"Propreté"}), wantStatus: http.StatusUnprocessableEntity},
		{name: "not open", err: model.NewRatingNotOpenError(), wantStatus: http.StatusConflict},
		{name: "already rated", err: model.NewAlreadyRatedError(), wantStatus: http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockRatingService{
				submitFn: func(ctx context.Context, visitorID string) (*ratingSubmitResponse, error) {
					return tt.resp, tt.err
				},
			}
			h := NewRatingHandler(svc, &mockTerminator{})

			w := httptest.NewRecorder()
			h.Submit(w, withVisitor(httptest.NewRequest(http.MethodPost, "/rating/submit", nil)))

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestRatingHandler_Cancel(t *testing.T) {
	h := NewRatingHandler(&mockRatingService{}, &mockTerminator{})

	w := httptest.NewRecorder()
	h.Cancel(w, withVisitor(httptest.NewRequest(http.MethodPost, "/rating/cancel", nil)))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var state rating.State
	json.NewDecoder(w.Body).Decode(&state)
	if state.Open {
		t.Error("キャンセル後はダイアログが閉じているべきです")
	}
}
