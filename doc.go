// Package gpublur blurs raster images with a Gaussian kernel on a GPU
// compute device.
//
// # Quick Start
//
//	res, err := gpublur.BlurFile(ctx, "in.jpg", "out.png", gpublur.WithIntensity(3))
//
// For several images on one device:
//
//	d, err := gpublur.Open(ctx)
//	if err != nil {
//	    return err
//	}
//	defer d.Close()
//	out, err := d.Blur(ctx, img, 2.5)
//
// # Pipeline
//
// Every Blur runs the same strictly sequential steps on a single goroutine:
// upload the pixels into a storage buffer, bake width, height and intensity
// into the WGSL kernel and compile it, bind input and output buffers, record
// one compute pass plus a copy into a host-mappable staging buffer, submit
// once and map the staging buffer back. All device objects are released
// before Blur returns.
//
// Intensity is the standard deviation of the Gaussian in pixels and must lie
// in [MinIntensity, MaxIntensity]. Samples outside the image repeat the
// nearest edge pixel.
//
// # Errors
//
// All failures are fatal for the run and classified with errors.Is against
// the exported sentinels. Shader diagnostics are available through
// *CompileError.
//
// # Build tags
//
// With -tags nogpu the wgpu backends are not linked and Open returns
// ErrNoAdapter.
package gpublur
