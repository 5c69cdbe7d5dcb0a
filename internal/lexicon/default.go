package lexicon

const DefaultVersion = "2024.1"

// DefaultTables returns a fresh copy of the built-in tables.
func DefaultTables() Tables {
	return Tables{
		Version: DefaultVersion,
		Categories: []CategoryTable{
			{
				Name:   "Large Language Models",
				Weight: 1.5,
				Keywords: []string{
					"llm", "large language model", "gpt", "bert", "transformer",
					"chatgpt", "claude", "gemini", "palm", "bard", "llama",
					"language model", "generative ai", "prompt engineering",
					"fine-tuning", "rlhf", "instruction tuning", "context window",
					"token", "embedding", "attention mechanism", "foundation model",
				},
			},
			{
				Name:   "Computer Vision",
				Weight: 1.3,
				Keywords: []string{
					"computer vision", "image recognition", "object detection",
					"image segmentation", "cv", "visual", "cnn", "convolutional",
					"yolo", "rcnn", "vit", "vision transformer", "image generation",
					"stable diffusion", "dall-e", "midjourney", "imagen",
					"visual understanding", "image classification", "face recognition",
					"scene understanding", "video analysis",
				},
			},
			{
				Name:   "Natural Language Processing",
				Weight: 1.2,
				Keywords: []string{
					"nlp", "natural language processing", "text analysis",
					"sentiment analysis", "named entity", "ner", "tokenization",
					"language understanding", "text generation", "machine translation",
					"question answering", "text classification", "semantic",
					"syntactic", "parsing", "pos tagging", "word embeddings",
				},
			},
			{
				Name:   "Machine Learning",
				Weight: 1.0,
				Keywords: []string{
					"machine learning", "ml", "neural network", "deep learning",
					"supervised learning", "unsupervised learning", "reinforcement learning",
					"training", "inference", "model", "algorithm", "gradient descent",
					"backpropagation", "optimization", "regularization", "overfitting",
					"cross-validation", "hyperparameter", "feature engineering",
				},
			},
			{
				Name:   "AI Ethics & Safety",
				Weight: 1.4,
				Keywords: []string{
					"ai ethics", "ai safety", "alignment", "bias", "fairness",
					"explainable ai", "interpretability", "transparency",
					"responsible ai", "ai governance", "ai regulation",
					"privacy", "security", "adversarial", "robustness",
					"hallucination", "ai risks", "ai benefits",
				},
			},
			{
				Name:   "Robotics & Autonomous Systems",
				Weight: 1.3,
				Keywords: []string{
					"robotics", "autonomous", "self-driving", "robot",
					"automation", "embodied ai", "control systems",
					"sensor fusion", "slam", "path planning", "manipulation",
					"humanoid", "drone", "autonomous vehicle",
				},
			},
			{
				Name:   "AI Research",
				Weight: 1.1,
				Keywords: []string{
					"arxiv", "research paper", "study", "experiment",
					"benchmark", "dataset", "sota", "state-of-the-art",
					"evaluation", "ablation", "methodology", "architecture",
					"novel approach", "breakthrough", "innovation",
				},
			},
			{
				Name:   "AI Applications",
				Weight: 0.9,
				Keywords: []string{
					"ai application", "use case", "deployment", "production",
					"enterprise ai", "ai integration", "ai adoption",
					"real-world", "practical", "implementation", "solution",
				},
			},
			{
				Name:   "AI Companies & Business",
				Weight: 1.0,
				Keywords: []string{
					"openai", "google ai", "deepmind", "anthropic", "meta ai",
					"microsoft ai", "amazon ai", "nvidia", "hugging face",
					"startup", "funding", "investment", "acquisition",
					"partnership", "product launch", "announcement",
				},
			},
			{
				Name:   "Multimodal AI",
				Weight: 1.4,
				Keywords: []string{
					"multimodal", "vision-language", "text-to-image",
					"image-to-text", "video understanding", "audio-visual",
					"cross-modal", "unified model", "multi-task",
				},
			},
		},
		HighValue: []string{
			"breakthrough", "revolutionary", "novel", "state-of-the-art", "sota",
			"benchmark", "outperform", "significant", "advancement", "innovation",
			"introduces", "proposes", "demonstrates", "achieves", "improves",
		},
		Breakthrough: []string{
			"breakthrough", "state-of-the-art", "sota", "novel approach",
			"outperforms", "first-ever", "record-breaking", "surpasses",
			"new benchmark", "significant improvement", "paradigm shift",
			"unprecedented",
		},
		Secondary: []string{
			"research", "study", "paper", "arxiv", "published", "journal",
			"conference", "proceedings", "experiment", "findings", "results",
			"methodology", "dataset", "evaluation", "analysis", "empirical",
			"theoretical", "algorithm", "framework", "approach", "method",
			"peer-reviewed", "citation", "authors", "abstract", "conclusion",
			"hypothesis", "validate", "reproduce", "ablation", "baseline",
			"neurips", "icml", "iclr", "cvpr", "acl", "emnlp", "aaai", "ijcai",
		},
		CanonicalMarkers: []string{"arxiv", "published"},
		CoreTitleTerms:   []string{"ai", "artificial intelligence", "machine learning", "llm"},
		Investment: []string{
			"funding", "raises", "raised", "series a", "series b", "series c",
			"seed round", "valuation", "valued at", "investors", "investor",
			"investment", "venture capital", "ipo", "acquisition", "acquires",
			"funding round", "backed by", "market cap",
		},
		ProductLaunch: []string{
			"launches", "launch", "unveils", "announces", "release", "released",
			"available now", "pricing", "general availability", "beta", "rollout",
			"new product",
		},
	}
}

// Default returns the built-in lexicon.
func Default() *Lexicon {
	return MustNew(DefaultTables())
}
