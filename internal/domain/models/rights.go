package models

// RightsSet is the effective permission shape of one caller against one
// folder. "Read own objects only" is a distinct, narrower right from "read
// all objects": it changes which listing and delta queries are issued
// (owner-scoped instead of folder-scoped), not just the answer of a check.
type RightsSet struct {
	Visible     bool // folder itself is visible to the caller
	ReadAll     bool // read every object in the folder
	ReadOwn     bool // read only objects the caller created
	WriteAll    bool
	WriteOwn    bool
	DeleteAll   bool
	DeleteOwn   bool
	CanCreate   bool
	FolderAdmin bool
}

// CanReadDocument reports whether the caller may read a document created by
// creator.
func (r RightsSet) CanReadDocument(creator, caller int64) bool {
	if r.ReadAll {
		return true
	}
	return r.ReadOwn && creator == caller
}

// CanWriteDocument reports whether the caller may modify a document created
// by creator.
func (r RightsSet) CanWriteDocument(creator, caller int64) bool {
	if r.WriteAll {
		return true
	}
	return r.WriteOwn && creator == caller
}

// CanDeleteDocument reports whether the caller may delete a document created
// by creator.
func (r RightsSet) CanDeleteDocument(creator, caller int64) bool {
	if r.DeleteAll {
		return true
	}
	return r.DeleteOwn && creator == caller
}

// OwnerScoped reports whether list/delta/count queries must be narrowed to
// the caller's own objects.
func (r RightsSet) OwnerScoped() bool {
	return !r.ReadAll && r.ReadOwn
}
