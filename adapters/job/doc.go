// Package reportjob runs report batches as go-job tasks.
package reportjob
