package layout_test

import (
	"fmt"

	"github.com/matzehuels/tilepaper/pkg/layout"
)

func ExampleCompute() {
	plan, err := layout.Compute(100, 100, 3, 3)
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println("base:", plan.Base, "gap:", plan.GapW)
	for _, c := range plan.Cells[:3] {
		fmt.Printf("(%g,%g) ", c.X, c.Y)
	}
	fmt.Println()
	// Output:
	// base: 33 gap: 0.5
	// (0,0) (33.5,0) (67,0)
}
