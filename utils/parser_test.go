package utils

import "testing"

func TestParsePrice(t *testing.T) {
	testCases := []struct {
		name             string
		input            string
		expected         float64
		expectedCurrency string
	}{
		{"Standard Price", "AED 1,079.00", 1079.00, "AED"},
		{"Price with Comma", "AED 2,550.50", 2550.50, "AED"},
		{"Price without Comma", "AED 350.75", 350.75, "AED"},
		{"Integer Price", "AED 99", 99.0, "AED"},
		{"Symbol Price", "$1,200 / month", 1200.0, "$"},
		{"Trailing Symbol", "450 €", 450.0, "€"},
		{"No Currency", "1500", 1500.0, ""},
		{"Empty String", "", 0.0, ""},
		{"Invalid String", "No Price", 0.0, ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result, currency := ParsePrice(tc.input)

			if result != tc.expected {
				t.Errorf("ParsePrice(%q) = %f; want %f", tc.input, result, tc.expected)
			}
			if currency != tc.expectedCurrency {
				t.Errorf("ParsePrice(%q) currency = %q; want %q", tc.input, currency, tc.expectedCurrency)
			}
		})
	}
}

func TestListingIDFromURL(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"Product Path", "https://shop.test/dp/B0123/ref=x?tag=1", "B0123"},
		{"Trailing Slash", "https://homes.test/rooms/98765/", "98765"},
		{"Query Only", "https://x.test/item?id=42", "item"},
		{"Empty", "", ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ListingIDFromURL(tc.input); got != tc.expected {
				t.Errorf("ListingIDFromURL(%q) = %q; want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestUniqueStrings(t *testing.T) {
	got := UniqueStrings([]string{"a", "", "b", "a", "c", "b"})
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("UniqueStrings() = %v; want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("UniqueStrings()[%d] = %q; want %q", i, got[i], want[i])
		}
	}
}
