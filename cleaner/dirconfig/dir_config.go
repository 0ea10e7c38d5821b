package dirconfig

// A DirConfig defines the manner in which a particular directory should be cleaned
type DirConfig interface {
	// CleanDir returns the names of the entries it removed.
	CleanDir() ([]string, error)
	GetDir() string
}
