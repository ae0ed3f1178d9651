package cmd

import (
	"reflect"
	"testing"
)

func TestSplitNonEmpty(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "", nil},
		{"single", "key-a", []string{"key-a"}},
		{"multiple", "key-a,key-b,key-c", []string{"key-a", "key-b", "key-c"}},
		{"whitespace and blanks collapse", " key-a ,, key-b ,", []string{"key-a", "key-b"}},
		{"all blank", " , , ", nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := splitNonEmpty(tc.in)
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("splitNonEmpty(%q) = %#v, want %#v", tc.in, got, tc.want)
			}
		})
	}
}
