package gldevice

import (
	"image"
	"strings"
	"testing"

	"q3backend/internal/device"
)

func TestPreprocessHeaderAndEntry(t *testing.T) {
	src := []byte("void VSMain() {}\n")
	out := Preprocess(src, "VSMain", []device.Define{
		{Name: "VERTEXSHADER", Value: "1"},
		{Name: "TCGEN_LIGHTMAP"},
	})

	lines := strings.Split(out, "\n")
	if lines[0] != glslVersion {
		t.Fatalf("first line: got %q, want %q", lines[0], glslVersion)
	}
	for _, want := range []string{"#define VERTEXSHADER 1", "#define TCGEN_LIGHTMAP", "#define VSMain main"} {
		if !strings.Contains(out, want+"\n") {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
	if !strings.HasSuffix(out, string(src)) {
		t.Errorf("source not appended verbatim")
	}
}

func TestPreprocessRegisterValues(t *testing.T) {
	out := Preprocess(nil, "PSMain", []device.Define{
		{Name: "VSREG_MVPMATRIX", Value: "c0"},
		{Name: "PSREG_BRIGHTNESS", Value: "c19"},
		{Name: "SAMPLERSTAGE", Value: "s3"},
		{Name: "TEXTURESTAGE", Value: "t3"},
	})
	for _, want := range []string{
		"#define VSREG_MVPMATRIX 0\n",
		"#define PSREG_BRIGHTNESS 19\n",
		"#define SAMPLERSTAGE 3\n",
		"#define TEXTURESTAGE 3\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q", want)
		}
	}
}

func TestRegisterValueLeavesOtherValues(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"c12", "12"},
		{"s0", "0"},
		{"t7", "7"},
		{"1", "1"},
		{"c", "c"},
		{"cx1", "cx1"},
		{"sin", "sin"},
		{"", ""},
		{"v2", "v2"},
	}
	for _, tt := range tests {
		if got := registerValue(tt.in); got != tt.want {
			t.Errorf("registerValue(%q): got %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestVertexCount(t *testing.T) {
	tests := []struct {
		prim  device.Primitive
		count int
		want  int
	}{
		{device.TriangleList, 4, 12},
		{device.TriangleFan, 2, 4},
		{device.TriangleStrip, 3, 5},
		{device.LineList, 3, 6},
	}
	for _, tt := range tests {
		if got := vertexCount(tt.prim, tt.count); got != tt.want {
			t.Errorf("vertexCount(%v, %d): got %d, want %d", tt.prim, tt.count, got, tt.want)
		}
	}
}

func TestPackedDropsRowPadding(t *testing.T) {
	full := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for i := range full.Pix {
		full.Pix[i] = byte(i)
	}
	sub := full.SubImage(image.Rect(1, 1, 3, 3)).(*image.RGBA)

	got := packed(sub)
	if len(got) != 2*2*4 {
		t.Fatalf("len: got %d, want %d", len(got), 16)
	}
	// row 1, column 1 of a 4-wide image starts at byte 20
	if got[0] != 20 || got[8] != 36 {
		t.Errorf("rows: got %d/%d, want 20/36", got[0], got[8])
	}

	if p := packed(full); &p[0] != &full.Pix[0] {
		t.Errorf("tight image was copied")
	}
}

func TestStageForProfile(t *testing.T) {
	if _, err := stageFor("vs_4_1"); err != nil {
		t.Errorf("vs_4_1: %v", err)
	}
	if _, err := stageFor("ps_4_1"); err != nil {
		t.Errorf("ps_4_1: %v", err)
	}
	if _, err := stageFor("cs_5_0"); err == nil {
		t.Errorf("cs_5_0: got nil error")
	}
}
