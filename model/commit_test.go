package model

import "testing"

func TestCommit(t *testing.T) {
	cmt := &Commit{ID: "deadbeefdeadbeef"}
	short := cmt.ShortID()
	expect := "deadbeef"
	if short != expect {
		t.Fatal("expected", expect, "got", short)
	}
}

func TestCommitShortIDShort(t *testing.T) {
	cmt := &Commit{ID: "dead"}
	if short := cmt.ShortID(); short != "dead" {
		t.Fatal("expected", "dead", "got", short)
	}
}

func TestCommitMessage(t *testing.T) {
	tcs := []struct {
		name    string
		subject string
		body    string
		expect  string
	}{
		{
			name:    "subject-only",
			subject: "fix: cool fix",
			expect:  "fix: cool fix",
		},
		{
			name:    "with-body",
			subject: "fix: cool fix",
			body:    "some detail",
			expect:  "fix: cool fix\n\nsome detail",
		},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			cmt := &Commit{Subject: tc.subject, Body: tc.body}
			if msg := cmt.Message(); msg != tc.expect {
				t.Fatalf("expected %q, got %q", tc.expect, msg)
			}
		})
	}
}
