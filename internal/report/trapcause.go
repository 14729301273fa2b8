package report

import (
	"fmt"
	"strconv"
	"strings"
)

// scauseNames maps RISC-V supervisor trap causes to their architectural
// names (u74 core, exception codes only).
var scauseNames = map[int64]string{
	0x0: "Instruction address misaligned",
	0x1: "Instruction access fault",
	0x2: "Illegal instruction",
	0x3: "Breakpoint",
	0x5: "Load access fault",
	0x6: "Store/AMO address misaligned",
	0x7: "Store/AMO access fault",
	0x8: "Environment call from U-mode",
	0xC: "Instruction page fault",
	0xD: "Load page fault",
	0xF: "Store/AMO page fault",
}

// TrapCauseName converts a raw trap cause, hex ("0x5") or decimal ("5"),
// into its architectural name. Unknown and unparseable causes come back
// as Reserved so they still group in the breakdown.
func TrapCauseName(cause string) string {
	cause = strings.TrimSpace(cause)
	var (
		n   int64
		err error
	)
	if strings.HasPrefix(strings.ToLower(cause), "0x") {
		n, err = strconv.ParseInt(cause[2:], 16, 64)
	} else {
		n, err = strconv.ParseInt(cause, 10, 64)
	}
	if err != nil {
		return fmt.Sprintf("Reserved (%s)", cause)
	}
	if name, ok := scauseNames[n]; ok {
		return name
	}
	return fmt.Sprintf("Reserved (%#x)", n)
}
