package stats

/*
Metric names. Scoped under "jobrunner" by the daemon.
*/
const (
	// jobs accepted by InitiateJob
	ManagerJobsAdmittedCounter = "jobsAdmittedCounter"

	// InitiateJob calls rejected because the job id was already active
	ManagerDuplicateJobCounter = "duplicateJobCounter"

	// InitiateJob calls rejected because no slot fit the job
	ManagerNoSlotCounter = "noSlotCounter"

	// jobs admitted but whose initial status update failed
	ManagerStartFailedCounter = "startFailedCounter"

	// number of currently active jobs
	ManagerActiveJobsGauge = "activeJobsGauge"

	// job directories removed by cleanup
	ManagerCleanedDirsCounter = "cleanedDirsCounter"

	// poll round trips to the coordinator, and the failed ones
	PollerPollCounter    = "pollCounter"
	PollerPollErrCounter = "pollErrCounter"

	// terminal job outcomes
	JobCompletedCounter = "jobCompletedCounter"
	JobFailedCounter    = "jobFailedCounter"
	JobTimeoutCounter   = "jobTimeoutCounter"

	// wall clock from Start() to the terminal state
	JobRunLatency_ms = "jobRunLatency_ms"

	// time spent staging inputs before spawn
	JobStagingLatency_ms = "jobStagingLatency_ms"

	// console output flushes sent to the coordinator
	JobConsoleFlushCounter = "consoleFlushCounter"

	// files uploaded back to the project
	JobUploadedFilesCounter = "uploadedFilesCounter"
)
