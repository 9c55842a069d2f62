package kernel

// Resources is the open-resource handle collaborator (files, descriptors)
type Resources interface {
	// Duplicate copies the handles of parent into child on fork
	Duplicate(parent, child int)
	// Release closes the handles of an exiting process
	Release(pid int)
}

type noResources struct{}

func (noResources) Duplicate(int, int) {}

func (noResources) Release(int) {}
