package stage

import (
	"errors"
	"net/http"
	"testing"
)

// TestStatus проверяет HTTP-статусы терминальных этапов.
func TestStatus(t *testing.T) {
	tests := []struct {
		stage Stage
		want  int
	}{
		{Unauthenticated, http.StatusUnauthorized},
		{BodyUnparseable, http.StatusBadRequest},
		{DatasetUnknown, http.StatusBadRequest},
		{MissingRequiredColumns, http.StatusBadRequest},
		{TableIDInvalid, http.StatusInternalServerError},
		{CredentialsUnresolved, http.StatusInternalServerError},
		{LoadFailed, http.StatusInternalServerError},
		{Success, http.StatusOK},
		{Stage("unknown"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := tt.stage.Status(); got != tt.want {
			t.Errorf("%s.Status() = %d, ожидался %d", tt.stage, got, tt.want)
		}
	}
}

// TestTracker_ForwardOnly проверяет, что переходы возможны только вперёд.
func TestTracker_ForwardOnly(t *testing.T) {
	tr := NewTracker()

	for _, s := range []Stage{Unauthenticated, BodyUnparseable, HeaderInvalid} {
		if err := tr.Enter(s); err != nil {
			t.Fatalf("Enter(%s): неожиданная ошибка: %v", s, err)
		}
	}
	if tr.Current() != HeaderInvalid {
		t.Errorf("Current() = %s, ожидался %s", tr.Current(), HeaderInvalid)
	}

	err := tr.Enter(BodyUnparseable)
	var te *TransitionError
	if !errors.As(err, &te) {
		t.Fatalf("ожидалась TransitionError, получено %v", err)
	}
	if te.Code != "INVALID_TRANSITION" {
		t.Errorf("Code = %q, ожидался INVALID_TRANSITION", te.Code)
	}

	// Повторный вход в текущий этап тоже запрещён
	if err := tr.Enter(HeaderInvalid); err == nil {
		t.Error("повторный Enter(header_invalid) должен вернуть ошибку")
	}
}

// TestTracker_UnknownStage проверяет отказ для неизвестного этапа.
func TestTracker_UnknownStage(t *testing.T) {
	tr := NewTracker()

	err := tr.Enter(Stage("bogus"))
	var te *TransitionError
	if !errors.As(err, &te) || te.Code != "UNKNOWN_STAGE" {
		t.Fatalf("ожидался UNKNOWN_STAGE, получено %v", err)
	}
}

// TestTracker_History проверяет запись истории переходов.
func TestTracker_History(t *testing.T) {
	tr := NewTracker()
	_ = tr.Enter(Unauthenticated)
	_ = tr.Enter(Success)

	h := tr.History()
	if len(h) != 2 {
		t.Fatalf("len(History) = %d, ожидалось 2", len(h))
	}
	if h[1].From != Unauthenticated || h[1].To != Success {
		t.Errorf("History[1] = %+v", h[1])
	}

	// Изменение копии не влияет на трекер
	h[0].To = LoadFailed
	if tr.History()[0].To != Unauthenticated {
		t.Error("History() должен возвращать копию")
	}
}

// TestSequence_Order проверяет, что success — последний этап.
func TestSequence_Order(t *testing.T) {
	if Sequence[len(Sequence)-1] != Success {
		t.Errorf("последний этап = %s, ожидался success", Sequence[len(Sequence)-1])
	}
	if RemapComplete.Index() >= TableIDInvalid.Index() {
		t.Error("remap_complete должен предшествовать table_id_invalid")
	}
}
