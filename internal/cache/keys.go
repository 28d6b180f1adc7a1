package cache

import "fmt"

// FingerprintsKey is the default key holding the notified fingerprints of table.
func FingerprintsKey(table string) string {
	return fmt.Sprintf("cachewatch:fingerprints:%s", table)
}
