/*
Package privfs is the runtime of an encrypted, content-addressed file system.

A Runtime opens the configured block storage and builds the forests of the private tree on top of it:

	cfg, err := privfs.LoadConfig("privfs.yaml")
	...
	rt, err := privfs.New(cfg)
	...
	defer rt.Close()

	forest, err := rt.NewForest(ctx)
	...
	forest, root, err := forest.NewRoot(ctx, time.Now())
	forest, root, err = forest.Write(ctx, root, private.SplitPath("notes/todo.txt"), []byte("..."), time.Now())
	rootCID, err := forest.Store(ctx)
*/
package privfs
