package port

// DatasetWalker enumerates the labeled reference images under a dataset root.
type DatasetWalker interface {
	Walk(root string) ([]LabeledFile, error)
}

// LabeledFile is one reference image and the label derived from its
// directory.
type LabeledFile struct {
	Label    string
	Category string
	Path     string
}
