package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestFromUnwrapsWrappedErrors(t *testing.T) {
	base := errors.New("mission not found")
	err := fmt.Errorf("query: %w", MissionNotFound(base))

	if !errors.Is(err, base) {
		t.Fatalf("errors.Is: want true")
	}
	ae := From(err, "mission_progress_failed")
	if ae.Status != http.StatusNotFound || ae.Code != CodeMissionNotFound {
		t.Fatalf("From: want={404 %s} got={%d %s}", CodeMissionNotFound, ae.Status, ae.Code)
	}
	if got := ae.Message(); got != "mission not found" {
		t.Fatalf("Message: want=%q got=%q", "mission not found", got)
	}
}

func TestFromDefaultsToInternal(t *testing.T) {
	cause := errors.New("pq: connection refused")
	ae := From(cause, "list_missions_failed")
	if ae.Status != http.StatusInternalServerError || ae.Code != "list_missions_failed" {
		t.Fatalf("From: want={500 list_missions_failed} got={%d %s}", ae.Status, ae.Code)
	}
	if got := ae.Message(); got != http.StatusText(http.StatusInternalServerError) {
		t.Fatalf("Message must hide the cause: got=%q", got)
	}
	if !errors.Is(ae, cause) {
		t.Fatalf("errors.Is: want true")
	}
	if got := From(cause, "").Code; got != CodeInternal {
		t.Fatalf("empty code: want=%s got=%s", CodeInternal, got)
	}
}

func TestErrorFormats(t *testing.T) {
	cases := []struct {
		err  *Error
		want string
	}{
		{InvalidArgument(errors.New("boom")), "invalid_argument: boom"},
		{New(http.StatusBadRequest, "", errors.New("boom")), "boom"},
		{BadRequest(CodeInvalidAction, nil), "invalid_action"},
		{New(http.StatusTeapot, "", nil), "api error (418)"},
		{nil, ""},
	}
	for _, tc := range cases {
		if got := tc.err.Error(); got != tc.want {
			t.Fatalf("Error(): want=%q got=%q", tc.want, got)
		}
	}
	if got := Unauthorized(nil).Message(); got != "Unauthorized" {
		t.Fatalf("Message without cause: want=Unauthorized got=%q", got)
	}
}
