package domain

import (
	"encoding/json"
	"testing"
)

func TestScore(t *testing.T) {
	cases := []struct {
		name      string
		correct   bool
		elapsedMs int64
		want      int
	}{
		{"fast correct", true, 500, 10},
		{"one second", true, 1000, 9},
		{"slow correct", true, 9500, 1},
		{"floor clamp", true, 15000, 1},
		{"negative elapsed", true, -4000, 10},
		{"wrong fast", false, 100, 0},
		{"wrong slow", false, 20000, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Score(tc.correct, tc.elapsedMs); got != tc.want {
				t.Fatalf("Score(%v, %d) = %d, want %d", tc.correct, tc.elapsedMs, got, tc.want)
			}
		})
	}
}

func TestValidateQuestions(t *testing.T) {
	if err := ValidateQuestions(nil); err != ErrEmptyQuestionBank {
		t.Fatalf("expected empty bank error, got %v", err)
	}

	good := QuestionRecord{Text: "2 + 2?", Options: [OptionCount]string{"3", "4", "5", "6"}, CorrectOption: 1}
	if err := ValidateQuestions([]QuestionRecord{good}); err != nil {
		t.Fatalf("expected valid bank, got %v", err)
	}

	bad := good
	bad.CorrectOption = 4
	if err := ValidateQuestions([]QuestionRecord{good, bad}); err == nil {
		t.Fatalf("expected out of range correct option to fail")
	}

	blank := good
	blank.Options[3] = ""
	if err := ValidateQuestions([]QuestionRecord{blank}); err == nil {
		t.Fatalf("expected blank option to fail")
	}
}

func TestQuestionRecordDecodeRequiresFourOptions(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"four options", `{"question":"2 + 2?","options":["3","4","5","6"],"correct":1}`, false},
		{"three options", `{"question":"2 + 2?","options":["3","4","5"],"correct":1}`, true},
		{"five options", `{"question":"2 + 2?","options":["3","4","5","6","7"],"correct":1}`, true},
		{"missing options", `{"question":"2 + 2?","correct":1}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var q QuestionRecord
			err := json.Unmarshal([]byte(tt.raw), &q)
			if tt.wantErr && err == nil {
				t.Fatalf("expected decode error, got %+v", q)
			}
			if !tt.wantErr && (err != nil || q.Options[3] != "6" || q.CorrectOption != 1) {
				t.Fatalf("unexpected decode result %+v (%v)", q, err)
			}
		})
	}

	var bank []QuestionRecord
	if err := json.Unmarshal([]byte(`[{"question":"2 + 2?","options":["3","4","5"],"correct":1}]`), &bank); err == nil {
		t.Fatalf("expected a short option list inside a bank to fail")
	}
}
