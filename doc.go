// Package s3utils transforms large sets of S3 objects without downloading
// them.
//
// Object keys under a bucket prefix are matched against a pattern, and
// destination keys are computed by substituting the pattern's capture groups
// into a template. Two remote mutations are available:
//
//   - Concat merges the matched objects into one object per target with
//     server-side multipart copy. A failed or cancelled session is aborted,
//     leaving no parts behind.
//   - Rename copies each matched object to its target and deletes the source.
//     Keys are handled independently and reported individually.
//
// Report scans a prefix and computes aggregate statistics.
//
// Example usage:
//
//	client, err := s3utils.New(ctx, s3utils.WithRegion("eu-west-1"))
//	if err != nil {
//	    return err
//	}
//
//	// Merge every archive into one object
//	results, err := client.Concat(ctx, "my-bucket/archives", "archives/*.gz", "archive.gz",
//	    s3utils.WithGlob(true))
//	if err != nil {
//	    return err
//	}
package s3utils
