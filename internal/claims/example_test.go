package claims_test

import (
	"fmt"

	"patentlint/internal/claims"
)

func ExampleExtract() {
	text := "The widget is described above.\n" +
		"What is claimed is:\n" +
		"1. A widget comprising:\n" +
		"   a frame.\n" +
		"2. The widget of claim 1, wherein the frame is steel.\n"

	block := claims.Extract(text)
	for _, c := range claims.Split(block) {
		fmt.Printf("%d: %s\n", c.Number, c.Text)
	}
	// Output:
	// 1: 1. A widget comprising: a frame.
	// 2: 2. The widget of claim 1, wherein the frame is steel.
}
