package messagequeue

// ExperienceCollectedPayload is the schema for experiences.collected messages.
type ExperienceCollectedPayload struct {
	ExperienceID string  `json:"experience_id"`
	TaskType     string  `json:"task_type,omitempty"`
	Domain       string  `json:"domain,omitempty"`
	Reward       float64 `json:"reward"`
	Timestamp    string  `json:"timestamp"`
}

// TrainingCompletedPayload is the schema for training.completed messages.
type TrainingCompletedPayload struct {
	Epochs         int     `json:"epochs"`
	Experiences    int     `json:"experiences"`
	BestValReward  float64 `json:"best_val_reward"`
	CheckpointPath string  `json:"checkpoint_path"`
}

// CheckpointSavedPayload is the schema for checkpoints.saved messages.
type CheckpointSavedPayload struct {
	Epoch      int     `json:"epoch"`
	Path       string  `json:"path"`
	ValReward  float64 `json:"val_reward"`
	Best       bool    `json:"best"`
}
