package ocr

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"
)

type scriptedEngine struct {
	calls   int
	replies [][]Result
	errs    []error
}

func (s *scriptedEngine) Read([]byte) ([]Result, error) {
	i := s.calls
	s.calls++
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	if i < len(s.replies) {
		return s.replies[i], err
	}
	return nil, err
}

func (s *scriptedEngine) Close() error { return nil }

func testRegion() gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(200, 200, 200, 0), 30, 90, gocv.MatTypeCV8UC3)
}

func TestCollectFiltersAndCleans(t *testing.T) {
	results := []Result{
		{Text: "ka-01 ab", Confidence: 0.9},
		{Text: "x1", Confidence: 0.9},
		{Text: "MH12", Confidence: 0.3},
		{Text: "--", Confidence: 0.95},
	}
	hits := collect(results, 0.3, 3)
	if len(hits) != 1 || hits[0].Text != "KA01AB" {
		t.Fatalf("unexpected hits %+v", hits)
	}
}

func TestBestPicksHighestConfidence(t *testing.T) {
	hit, ok := best([]Hit{{"AAA", 0.4}, {"BBB", 0.9}, {"CCC", 0.9}})
	if !ok || hit.Text != "BBB" {
		t.Fatalf("expected first of the highest, got %+v", hit)
	}
	if _, ok := best(nil); ok {
		t.Fatal("expected no hit on empty input")
	}
}

func TestExtractAcrossVariants(t *testing.T) {
	engine := &scriptedEngine{replies: [][]Result{
		{{Text: "KA01AB1234", Confidence: 0.5}},
		{{Text: "KA01AB1284", Confidence: 0.7}},
		nil,
		{{Text: "KA0", Confidence: 0.2}},
	}}
	region := testRegion()
	defer region.Close()

	hit, ok := NewExtractor(engine, zerolog.Nop()).Extract(region)
	if !ok {
		t.Fatal("expected a hit")
	}
	if hit.Text != "KA01AB1284" || hit.Confidence != 0.7 {
		t.Fatalf("unexpected hit %+v", hit)
	}
	if engine.calls != 4 {
		t.Fatalf("expected one read per variant, got %d", engine.calls)
	}
}

func TestExtractRetriesWithLowerThreshold(t *testing.T) {
	engine := &scriptedEngine{replies: [][]Result{
		nil, nil, nil, nil,
		{{Text: "K1", Confidence: 0.15}, {Text: "Z", Confidence: 0.9}},
	}}
	region := testRegion()
	defer region.Close()

	hit, ok := NewExtractor(engine, zerolog.Nop()).Extract(region)
	if !ok || hit.Text != "K1" {
		t.Fatalf("expected relaxed hit K1, got %+v ok=%v", hit, ok)
	}
	if engine.calls != 5 {
		t.Fatalf("expected retry read, got %d calls", engine.calls)
	}
}

func TestExtractSurvivesEngineErrors(t *testing.T) {
	boom := errors.New("boom")
	engine := &scriptedEngine{
		errs:    []error{boom, boom, nil, boom, boom},
		replies: [][]Result{nil, nil, {{Text: "MH12CD5678", Confidence: 0.6}}},
	}
	region := testRegion()
	defer region.Close()

	hit, ok := NewExtractor(engine, zerolog.Nop()).Extract(region)
	if !ok || hit.Text != "MH12CD5678" {
		t.Fatalf("expected hit from the healthy variant, got %+v", hit)
	}
}

func TestExtractEmptyRegion(t *testing.T) {
	engine := &scriptedEngine{}
	empty := gocv.NewMat()
	defer empty.Close()

	if _, ok := NewExtractor(engine, zerolog.Nop()).Extract(empty); ok {
		t.Fatal("expected no hit for an empty region")
	}
	if engine.calls != 0 {
		t.Fatal("engine should not be called for an empty region")
	}
}

func TestUnavailable(t *testing.T) {
	ex := NewExtractor(Unavailable{Reason: errors.New("no tessdata")}, zerolog.Nop())
	if ex.Available() {
		t.Fatal("extractor over Unavailable must report unavailable")
	}
	_, err := Unavailable{}.Read(nil)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if !NewExtractor(&scriptedEngine{}, zerolog.Nop()).Available() {
		t.Fatal("working engine should be available")
	}
	if NewExtractor(nil, zerolog.Nop()).Available() {
		t.Fatal("nil engine should be unavailable")
	}
}
