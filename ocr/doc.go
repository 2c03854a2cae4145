// Package ocr is a Go client for the LeapOCR document processing API.
//
// Documents are submitted by public URL (Client.ProcessURL), through a
// presigned storage URL (Client.UploadFile) or as a multipart upload
// (Client.UploadFileDirect). Each submission returns a job identifier whose
// progress is read with Client.GetJobStatus and whose output is fetched,
// page by page, with Client.GetJobResult.
//
// # Waiting for jobs
//
// WaitUntilDone polls a StatusFetcher until the job is completed, failed or
// cancelled, backing off between polls:
//
//	job, err := client.WaitUntilDone(ctx, jobID, ocr.DefaultPollOptions())
//	var timeout *ocr.TimeoutError
//	var failed *ocr.JobFailedError
//	switch {
//	case errors.As(err, &timeout):
//		// the job is still running remotely
//	case errors.As(err, &failed):
//		log.Printf("job failed: %s", failed.Message)
//	}
//
// Any function with the StatusFetcher signature can drive the loop, which
// keeps the polling policy independent of the HTTP client.
package ocr
