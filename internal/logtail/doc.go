// Package logtail reads back the JSON log file written when log.file is
// configured.
//
// Read keeps a ring of the last N lines so large files are scanned once
// without being loaded whole. Filter drops events below a level, and Render
// pretty-prints them with zerolog's console writer:
//
//	lines, err := logtail.Read(cfg.Log.File, 200)
//	if err != nil {
//		return err
//	}
//	return logtail.Render(os.Stdout, logtail.Filter(lines, zerolog.WarnLevel), false)
package logtail
