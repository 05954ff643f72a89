package pagination

// CalculateOffset converts a 1-based page number into the row offset for a
// LIMIT/OFFSET query: page 1 starts at offset 0.
func CalculateOffset(page, limit int) int {
	return (page - 1) * limit
}

// CalculateTotalPages returns how many pages the total spans, by ceiling
// division. An empty result still has one page, so clients always get a
// consistent page range.
func CalculateTotalPages(total int64, limit int) int {
	if total == 0 {
		return 1
	}
	return int((total + int64(limit) - 1) / int64(limit))
}
