package utils

import (
	"regexp"
	"strconv"
	"strings"
)

// priceRegex finds the first number-like token in a string.
// It handles integers (1,079), decimals (119.00), and thousands separators.
var priceRegex = regexp.MustCompile(`[\d,]+(?:\.\d+)?`)

// currencyRegex matches a leading or trailing currency code or symbol.
var currencyRegex = regexp.MustCompile(`([A-Z]{3}|[$€£¥₹])`)

// ParsePrice cleans a price string like "List Price: AED 219.41" and returns
// the amount and the currency marker found next to it, if any.
func ParsePrice(priceStr string) (float64, string) {
	if priceStr == "" {
		return 0.0, ""
	}

	// 1. Find the first number-like pattern in the string.
	foundPrice := priceRegex.FindString(priceStr)
	if foundPrice == "" || strings.Trim(foundPrice, ",") == "" {
		return 0.0, ""
	}

	// 2. Remove separators to make it a valid number for parsing.
	cleanedStr := strings.ReplaceAll(foundPrice, ",", "")

	price, err := strconv.ParseFloat(cleanedStr, 64)
	if err != nil {
		return 0.0, ""
	}

	return price, currencyRegex.FindString(priceStr)
}
