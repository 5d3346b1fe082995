package calculator

import (
	"math"
	"testing"
	"time"

	"MarketDashboard/internal/model"
)

var t0 = time.Date(2024, 3, 1, 14, 0, 0, 0, time.UTC)

func closes(step time.Duration, vals ...float64) model.Series {
	s := make(model.Series, len(vals))
	for i, v := range vals {
		s[i] = model.OHLC{Time: t0.Add(time.Duration(i) * step), Open: v, High: v, Low: v, Close: v}
	}
	return s
}

func TestDollarIndexProxy_RequiredLegsOnly(t *testing.T) {
	legs := []LegSeries{
		{Pair: "eurusd", Weight: DXYWeights["eurusd"], Required: true, Series: closes(time.Minute, 1.08, 1.09)},
		{Pair: "usdjpy", Weight: DXYWeights["usdjpy"], Required: true, Series: closes(time.Minute, 150, 151)},
	}
	got := DollarIndexProxy(legs)
	if len(got) != 2 {
		t.Fatalf("expected 2 bars, got %d", len(got))
	}
	want := DXYConstant * math.Pow(1.08, -0.576) * math.Pow(150, 0.136)
	if math.Abs(got[0].Close-want) > 1e-9 {
		t.Errorf("close = %f, want %f", got[0].Close, want)
	}
	for _, b := range got {
		if !(b.High >= b.Close && b.Close >= b.Low) {
			t.Errorf("bar %v violates high >= close >= low", b)
		}
		if math.Abs(b.Open-b.Close*0.99) > 1e-9 {
			t.Errorf("open = %f, want close*0.99", b.Open)
		}
	}
	if !got[0].Time.Before(got[1].Time) {
		t.Error("expected ascending timestamps")
	}
}

func TestDollarIndexProxy_SkipsTimestampsMissingRequiredLeg(t *testing.T) {
	usdjpy := closes(time.Minute, 150, 151, 152)
	usdjpy = append(usdjpy[:1], usdjpy[2:]...) // drop the middle bar
	legs := []LegSeries{
		{Pair: "eurusd", Weight: -0.576, Required: true, Series: closes(time.Minute, 1.08, 1.09, 1.10)},
		{Pair: "usdjpy", Weight: 0.136, Required: true, Series: usdjpy},
	}
	if got := DollarIndexProxy(legs); len(got) != 2 {
		t.Fatalf("expected 2 bars, got %d", len(got))
	}
}

func TestDollarIndexProxy_OptionalLegContributesWherePresent(t *testing.T) {
	base := []LegSeries{
		{Pair: "eurusd", Weight: -0.576, Required: true, Series: closes(time.Minute, 1.08)},
		{Pair: "usdjpy", Weight: 0.136, Required: true, Series: closes(time.Minute, 150)},
	}
	withCAD := append(append([]LegSeries{}, base...),
		LegSeries{Pair: "usdcad", Weight: 0.091, Series: closes(time.Minute, 1.36)})

	a, b := DollarIndexProxy(base), DollarIndexProxy(withCAD)
	want := a[0].Close * math.Pow(1.36, 0.091)
	if math.Abs(b[0].Close-want) > 1e-9 {
		t.Errorf("close with usdcad = %f, want %f", b[0].Close, want)
	}
}

func TestDollarIndexProxy_NoRequiredLegs(t *testing.T) {
	legs := []LegSeries{{Pair: "usdcad", Weight: 0.091, Series: closes(time.Minute, 1.36)}}
	if got := DollarIndexProxy(legs); len(got) != 0 {
		t.Errorf("expected empty series, got %d bars", len(got))
	}
	if got := DollarIndexProxy(nil); got != nil {
		t.Errorf("expected nil, got %v", got)
	}
}

func TestResample_FiveMinuteBuckets(t *testing.T) {
	var in model.Series
	for i := 0; i < 12; i++ {
		v := float64(100 + i)
		in = append(in, model.OHLC{Time: t0.Add(time.Duration(i) * time.Minute), Open: v, High: v + 0.5, Low: v - 0.5, Close: v + 0.25})
	}
	got := Resample(in, 5*time.Minute)
	if len(got) != 3 {
		t.Fatalf("expected 3 buckets, got %d", len(got))
	}
	first := got[0]
	if !first.Time.Equal(t0) || first.Open != 100 || first.High != 104.5 || first.Low != 99.5 || first.Close != 104.25 {
		t.Errorf("unexpected first bucket: %+v", first)
	}
	if last := got[2]; last.Open != 110 || last.Close != 111.25 {
		t.Errorf("unexpected partial bucket: %+v", last)
	}
}

func TestResample_DropsEmptyBuckets(t *testing.T) {
	in := model.Series{
		{Time: t0, Open: 1, High: 1, Low: 1, Close: 1},
		{Time: t0.Add(20 * time.Minute), Open: 2, High: 2, Low: 2, Close: 2},
	}
	if got := Resample(in, 5*time.Minute); len(got) != 2 {
		t.Errorf("expected 2 buckets, got %d", len(got))
	}
}

func TestResample_ZeroIntervalIsNoop(t *testing.T) {
	in := closes(time.Minute, 1, 2, 3)
	if got := Resample(in, 0); len(got) != 3 {
		t.Errorf("expected input unchanged, got %d bars", len(got))
	}
}

func TestSummarize(t *testing.T) {
	s := model.Series{
		{Time: t0, Open: 100, High: 102, Low: 99, Close: 101},
		{Time: t0.Add(5 * time.Minute), Open: 101, High: 104, Low: 100, Close: 103},
		{Time: t0.Add(10 * time.Minute), Open: 103, High: 106, Low: 102, Close: 105},
	}
	sum, err := Summarize(s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sum.Points != 3 || sum.Last != 105 || sum.Change != 5 {
		t.Errorf("unexpected summary: %+v", sum)
	}
	if math.Abs(sum.ChangePercent-5) > 1e-9 {
		t.Errorf("change %% = %f, want 5", sum.ChangePercent)
	}
	if sum.High != 106 || sum.Low != 99 || sum.Mean != 103 {
		t.Errorf("unexpected range: high=%f low=%f mean=%f", sum.High, sum.Low, sum.Mean)
	}
	if math.Abs(sum.Position-6.0/7.0) > 1e-9 {
		t.Errorf("position = %f, want %f", sum.Position, 6.0/7.0)
	}
}

func TestSummarize_Empty(t *testing.T) {
	if _, err := Summarize(nil); err == nil {
		t.Error("expected error for empty series")
	}
}

func TestPosition(t *testing.T) {
	tests := []struct {
		price, high, low, want float64
	}{
		{5, 10, 0, 0.5},
		{12, 10, 0, 1},
		{-1, 10, 0, 0},
		{3, 3, 3, 0.5},
	}
	for _, tt := range tests {
		if got := Position(tt.price, tt.high, tt.low); got != tt.want {
			t.Errorf("Position(%v, %v, %v) = %v, want %v", tt.price, tt.high, tt.low, got, tt.want)
		}
	}
}

func TestSMA(t *testing.T) {
	got, err := SMA([]float64{1, 2, 3, 4, 5}, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 4 {
		t.Errorf("SMA = %v, want 4", got)
	}
	if _, err := SMA([]float64{1, 2}, 3); err == nil {
		t.Error("expected error for short input")
	}
	if _, err := SMA([]float64{1, 2}, 0); err == nil {
		t.Error("expected error for zero period")
	}
}

func TestRSI(t *testing.T) {
	rising := make([]float64, 20)
	for i := range rising {
		rising[i] = float64(100 + i)
	}
	if got, _ := RSI(rising, 14); got != 100 {
		t.Errorf("RSI of rising series = %v, want 100", got)
	}

	zigzag := make([]float64, 30)
	for i := range zigzag {
		zigzag[i] = 100
		if i%2 == 1 {
			zigzag[i] = 101
		}
	}
	got, err := RSI(zigzag, 14)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got < 40 || got > 60 {
		t.Errorf("RSI of zigzag = %v, want near 50", got)
	}

	if _, err := RSI(rising[:10], 14); err == nil {
		t.Error("expected error for short input")
	}
}

func TestSummarize_IndicatorsNeedEnoughBars(t *testing.T) {
	short, err := Summarize(closes(5*time.Minute, 1, 2, 3))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if short.SMA != nil || short.RSI != nil {
		t.Error("expected no indicators for three bars")
	}

	vals := make([]float64, 20)
	for i := range vals {
		vals[i] = float64(i + 1)
	}
	long, err := Summarize(closes(5*time.Minute, vals...))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if long.SMA == nil || *long.SMA != 14.5 {
		t.Errorf("SMA = %v, want 14.5", long.SMA)
	}
	if long.RSI == nil || *long.RSI != 100 {
		t.Errorf("RSI = %v, want 100", long.RSI)
	}
}
