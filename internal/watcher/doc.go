// Package watcher reports changes to a fixed set of files, such as the movie
// corpus and the project config, so `build-index --watch` can rebuild.
//
// fsnotify watches the parent directory of every file, which also catches
// editors that save by writing a temp file and renaming it over the target.
// When fsnotify cannot be initialised the watcher polls file metadata.
// Events are debounced so one save produces one rebuild.
//
//	w, err := watcher.New(watcher.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	defer w.Stop()
//	go w.Start(ctx, corpusPath, configPath)
//	for batch := range w.Events() {
//	    rebuild(batch)
//	}
package watcher
