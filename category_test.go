package imagesort

import (
	"errors"
	"fmt"
	"testing"
)

func TestParseCategory(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Category
		wantErr bool
	}{
		{in: "living", want: CategoryLiving},
		{in: " Manufactured ", want: CategoryManufactured},
		{in: "NATURAL", want: CategoryNatural},
		{in: "", wantErr: true},
		{in: "mineral", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			t.Parallel()
			got, err := ParseCategory(tc.in)
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidInput) {
					t.Errorf("err = %v, want ErrInvalidInput", err)
				}
				return
			}
			if err != nil || got != tc.want {
				t.Errorf("ParseCategory(%q) = (%q, %v), want %q", tc.in, got, err, tc.want)
			}
		})
	}
}

func TestWrapError(t *testing.T) {
	t.Parallel()

	cause := errors.New("file missing")
	err := wrapError(ErrModelUnavailable, "load model", cause)

	if !errors.Is(err, ErrModelUnavailable) || !errors.Is(err, cause) {
		t.Errorf("wrapError lost kind or cause: %v", err)
	}
	if got, want := err.Error(), fmt.Sprintf("load model: %v: %v", ErrModelUnavailable, cause); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if wrapError(ErrDecode, "x", nil) != nil {
		t.Error("wrapError(nil) != nil")
	}
}
