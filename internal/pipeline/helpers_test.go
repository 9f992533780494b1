package pipeline

import (
	"reflect"
	"testing"
)

func TestParseStagePayloadRoundTrip(t *testing.T) {
	t.Parallel()
	want := ConceptSlots{
		Description: "mug on oak table",
		Background:  "warm cafe",
		Lighting:    "window light",
		CameraAngle: "overhead",
		AspectRatio: "1:1",
		Summary:     "Cozy cafe mug shot",
	}
	raw := `{"description":"mug on oak table","background":"warm cafe","lighting":"window light","camera_angle":"overhead","aspect_ratio":"1:1","summary":"Cozy cafe mug shot"}`
	got, err := parseStagePayload[ConceptSlots](raw)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestParseStagePayloadRecoversWrappedJSON(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		raw  string
	}{
		{name: "commentary", raw: "Sure! Here is the JSON you asked for:\n{\"summary\":\"ok\"}\nLet me know if you need more."},
		{name: "code_fence", raw: "```json\n{\"summary\":\"ok\"}\n```"},
		{name: "fence_no_lang", raw: "```\n{\"summary\":\"ok\"}\n```"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := parseStagePayload[ConceptSlots](tc.raw)
			if err != nil {
				t.Fatalf("parse error: %v", err)
			}
			if got.Summary != "ok" {
				t.Fatalf("Summary = %q", got.Summary)
			}
		})
	}
}

func TestParseStagePayloadNoJSON(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"", "   ", "just prose with no braces"} {
		if _, err := parseStagePayload[ConceptSlots](raw); err == nil {
			t.Fatalf("input %q should fail, not panic or succeed", raw)
		}
	}
}

func TestExtractJSONFragment(t *testing.T) {
	t.Parallel()
	if got := extractJSONFragment("prefix {\"a\":1} suffix"); got != `{"a":1}` {
		t.Fatalf("got %q", got)
	}
	if got := extractJSONFragment("no json here"); got != "no json here" {
		t.Fatalf("got %q", got)
	}
}

func TestCoalesce(t *testing.T) {
	t.Parallel()
	if got := coalesce("", "  ", "b", "c"); got != "b" {
		t.Fatalf("got %q", got)
	}
	if got := coalesce("", "  "); got != "" {
		t.Fatalf("got %q", got)
	}
}
