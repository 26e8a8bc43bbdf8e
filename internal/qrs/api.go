package qrs

// qrsTask mirrors the slice of /qrs/task/full that this tool reads.
// Unknown fields are ignored.
type qrsTask struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	App              qrsApp          `json:"app"`
	Operational      qrsOperational  `json:"operational"`
	CustomProperties []qrsCustomProp `json:"customProperties"`
}

type qrsApp struct {
	Name   string     `json:"name"`
	Stream *qrsStream `json:"stream"`
}

type qrsStream struct {
	Name string `json:"name"`
}

type qrsOperational struct {
	NextExecution       string             `json:"nextExecution"`
	LastExecutionResult qrsExecutionResult `json:"lastExecutionResult"`
}

type qrsExecutionResult struct {
	Status            int    `json:"status"`
	StartTime         string `json:"startTime"`
	StopTime          string `json:"stopTime"`
	ScriptLogLocation string `json:"scriptLogLocation"`
}

type qrsCustomProp struct {
	Value      string            `json:"value"`
	Definition qrsPropDefinition `json:"definition"`
}

type qrsPropDefinition struct {
	Name string `json:"name"`
}
