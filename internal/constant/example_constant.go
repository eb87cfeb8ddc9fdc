package constant

import "bizinsight-be/internal/dto"

var ExampleQueries = []dto.ExampleQuery{
	{Id: 1, Category: "Sales Analysis", Title: "Revenue Trends", Query: "Show me the total revenue for each month this year", Description: "Analyze monthly revenue patterns and identify trends"},
	{Id: 2, Category: "Customer Insights", Title: "Customer Growth", Query: "How many new customers did we acquire in the last quarter?", Description: "Track customer acquisition and growth metrics"},
	{Id: 3, Category: "Product Performance", Title: "Top Products", Query: "What are our top 5 best-selling products this month?", Description: "Identify best-performing products by sales volume"},
	{Id: 4, Category: "User Engagement", Title: "Active Users", Query: "Show me daily active users for the past week", Description: "Monitor user engagement and activity patterns"},
	{Id: 5, Category: "Financial Overview", Title: "Profit Margins", Query: "Calculate the average profit margin by product category", Description: "Analyze profitability across different product lines"},
	{Id: 6, Category: "Geographic Analysis", Title: "Regional Sales", Query: "Break down sales by region for the current quarter", Description: "Understand geographic distribution of sales"},
	{Id: 7, Category: "Customer Behavior", Title: "Purchase Frequency", Query: "What is the average purchase frequency of our customers?", Description: "Understand customer buying patterns"},
	{Id: 8, Category: "Inventory", Title: "Stock Levels", Query: "Which products have low stock levels (less than 10 units)?", Description: "Monitor inventory levels and identify restocking needs"},
}
