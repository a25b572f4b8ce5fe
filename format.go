package multiparse

import "fmt"

var sizeUnits = [...]string{"B", "KiB", "MiB", "GiB", "TiB"}

// FormatSize renders a byte count in human readable binary units, e.g.
// "4.00 MiB".
func FormatSize(bytes uint64) string {
	size := float64(bytes)
	unit := 0
	for size >= 1024 && unit < len(sizeUnits)-1 {
		size /= 1024
		unit++
	}
	return fmt.Sprintf("%.2f %s", size, sizeUnits[unit])
}
