package utils

import "testing"

func TestCalculateDataMD5(t *testing.T) {
	tests := []struct {
		data []byte
		want string
	}{
		{nil, "d41d8cd98f00b204e9800998ecf8427e"},
		{[]byte("hello"), "5d41402abc4b2a76b9719d911017c592"},
	}

	for _, tt := range tests {
		if got := CalculateDataMD5(tt.data); got != tt.want {
			t.Errorf("CalculateDataMD5(%q) = %s, want %s", tt.data, got, tt.want)
		}
	}
}
