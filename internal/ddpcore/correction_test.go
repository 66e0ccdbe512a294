package ddpcore

import "testing"

func TestApplyIdentityIsNoOp(t *testing.T) {
	pixels := []byte{10, 20, 30, 40, 50, 60}
	want := append([]byte(nil), pixels...)
	Apply(pixels, DefaultCorrectionConfig())
	for i := range pixels {
		if pixels[i] != want[i] {
			t.Fatalf("identity correction mutated byte %d: got %d want %d", i, pixels[i], want[i])
		}
	}
}

func TestApplyChannelPermutation(t *testing.T) {
	pixels := []byte{10, 20, 30}
	cfg := DefaultCorrectionConfig()
	cfg.Order = ParseChannelOrder("BGR")
	Apply(pixels, cfg)
	want := []byte{30, 20, 10}
	for i := range pixels {
		if pixels[i] != want[i] {
			t.Fatalf("BGR permutation byte %d = %d, want %d", i, pixels[i], want[i])
		}
	}
}

func TestApplyGainClamps(t *testing.T) {
	pixels := []byte{200, 100, 50}
	cfg := DefaultCorrectionConfig()
	cfg.Gains = [3]float32{2, 1, 1}
	Apply(pixels, cfg)
	if pixels[0] != 255 {
		t.Fatalf("gained+clamped channel 0 = %d, want 255", pixels[0])
	}
	if pixels[1] != 100 {
		t.Fatalf("unity-gain channel 1 = %d, want 100", pixels[1])
	}
}

func TestApplyGammaDarkensMidtone(t *testing.T) {
	pixels := []byte{128, 128, 128}
	cfg := DefaultCorrectionConfig()
	gamma := float32(2.2)
	cfg.Gamma = &gamma
	Apply(pixels, cfg)
	if pixels[0] >= 128 {
		t.Fatalf("gamma 2.2 should darken midtone 128, got %d", pixels[0])
	}
}

func TestParseChannelOrderDefaultsToRGB(t *testing.T) {
	if got := ParseChannelOrder("nonsense"); got != (ChannelOrder{0, 1, 2}) {
		t.Fatalf("ParseChannelOrder(invalid) = %v, want RGB identity", got)
	}
}
