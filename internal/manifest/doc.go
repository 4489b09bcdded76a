// Package manifest builds the assets manifest: a JSON object mapping logical
// asset names to the files a build actually emitted.
//
// # Entry lifecycle
//
// Every entry written through Manifest.Set goes through the same steps:
//
//  1. the key is normalized (backslashes become forward slashes),
//  2. a string value is resolved against the configured public path,
//  3. registered Customize stages run in order and may revise or veto it,
//  4. when integrity is enabled and the value is still the resolved public
//     path, it is wrapped as {"src": value, "integrity": digest}.
//
// Manifest.SetRaw skips all of the above.
//
// # Usage
//
// The host pipeline drives a Plugin through its lifecycle methods:
//
//	plugin, err := manifest.NewPlugin(manifest.PluginOptions{Options: opts})
//	if err != nil {
//	    return err
//	}
//	if err := plugin.Apply(); err != nil {
//	    return err
//	}
//
//	plugin.RunStart()
//	plugin.CompilationStart(compilation)
//	plugin.ProcessAssetsAnalyse(compilation)
//	plugin.ProcessAssetsIntegrity(compilation)
//	err = plugin.AfterProcessAssets(compilation)
//	// host emits assets
//	err = plugin.AfterEmit(ctx, compilation)
//	err = plugin.Done(ctx, stats)
//
// # Error Handling
//
// The package defines sentinel errors for common failure cases:
//   - ErrUnknownAlgorithm: an integrity algorithm outside the allow-list
//   - ErrInvalidPattern: a file extension or hot update pattern that does not compile
//   - ErrNotApplied: a lifecycle method called before Apply
package manifest
