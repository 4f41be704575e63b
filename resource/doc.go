// Package resource tracks host values that a WebAssembly guest refers to
// through resource handles.
//
// A host function that returns own<file> stores the Go value in a Table and
// hands the guest the resulting Handle; later calls with borrow<file> or
// own<file> look the value up again. Handles are 32-bit, never zero, and
// reused after Remove. Values implementing Dropper are released when their
// handle is removed or the table is closed.
//
// Generated bindings attach one table to each instance and make it
// available to host implementations through the call context:
//
//	func (h *fsHost) Open(ctx context.Context, path string) (File, error) {
//		f, err := os.Open(path)
//		if err != nil {
//			return 0, err
//		}
//		return File(resource.FromContext(ctx).Insert("file", f)), nil
//	}
package resource
