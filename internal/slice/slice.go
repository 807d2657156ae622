package slice

// Remove returns a copy of slice without the elements in [stId, endId).
func Remove[T any](slice []T, stId int, endId int) []T {
	newSlice := make([]T, len(slice)-endId+stId)

	copy(newSlice, slice[:stId])
	copy(newSlice[stId:], slice[endId:])

	return newSlice
}

// TrimSpaces returns the index of the first non-blank byte at or after id.
func TrimSpaces(line string, id int) int {
	for id < len(line) && IsSpace(line[id]) {
		id++
	}

	return id
}

func IsSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}
